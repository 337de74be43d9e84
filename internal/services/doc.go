// Package services provides the service registry the HTTP layer reads from.
//
// The registry bundles the composed pipeline (document context, content
// fetcher, history, settings, chat). Build it once in the daemon with
// NewRegistry and hand it to the server.
package services
