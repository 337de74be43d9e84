package conversation

import (
	"encoding/json"
	"fmt"
)

// DecodeResult describes entries skipped while decoding a blob.
type DecodeResult struct {
	ErrorCount int
	Errors     []DecodeError
}

// DecodeError records a skipped entry.
type DecodeError struct {
	Index int
	Error string
}

// Encode serializes a conversation as a JSON array.
func Encode(c Conversation) ([]byte, error) {
	if c == nil {
		c = Conversation{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding conversation: %w", err)
	}
	return data, nil
}

// Decode parses a persisted conversation. Entries that are not objects or
// carry an unknown role are skipped and reported in the result rather than
// failing the whole blob. An empty blob decodes to an empty conversation.
func Decode(data []byte) (Conversation, *DecodeResult, error) {
	res := &DecodeResult{}
	if len(data) == 0 {
		return Conversation{}, res, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, res, fmt.Errorf("decoding conversation: %w", err)
	}

	conv := make(Conversation, 0, len(raw))
	for i, entry := range raw {
		var m Message
		if err := json.Unmarshal(entry, &m); err != nil {
			res.add(i, err.Error())
			continue
		}
		if err := m.Validate(); err != nil {
			res.add(i, err.Error())
			continue
		}
		conv = append(conv, m)
	}
	return conv, res, nil
}

func (r *DecodeResult) add(index int, msg string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, DecodeError{Index: index, Error: msg})
}
