// Package conversation holds the chat message model shared by the prompt
// assembler, the history manager and the model client.
//
// A Conversation is an ordered sequence of Messages in chronological order.
// A system message, when present, is conventionally first and there is never
// more than one.
//
// # Persistence
//
// Conversations are stored as a JSON array of {"role","content"} objects,
// the same blob layout the editor plugin writes. Decode tolerates individual
// malformed entries and reports them alongside the messages that did parse:
//
//	conv, res, err := conversation.Decode(blob)
//	if err != nil {
//	    // blob is not a JSON array at all
//	}
//	if res.ErrorCount > 0 {
//	    logger.Warn("dropped malformed history entries", zap.Int("count", res.ErrorCount))
//	}
package conversation
