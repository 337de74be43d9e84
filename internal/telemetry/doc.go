// Package telemetry sets up OpenTelemetry tracing and metrics export.
//
// Telemetry is off by default: a local assistant rarely has a collector
// next to it. When enabled, spans from the chat pipeline (chat.Submit,
// prompt.Build, content.*, ollama.*) and the HTTP server metrics are
// exported over OTLP, gRPC or http/protobuf.
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Exporter failures never stop the daemon; New returns a degraded instance
// and the global providers stay no-op.
package telemetry
