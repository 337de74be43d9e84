package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// redacted replaces Secret values in every printed or serialized form.
const redacted = "[REDACTED]"

// Duration is a time.Duration read from YAML or the environment. Text values
// are Go duration strings ("300ms", "1m30s") or integer strings, taken as
// milliseconds the way the editor plugin stores its debounce. Quote integers
// in YAML; an unquoted number bypasses UnmarshalText.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	raw := string(text)
	var parsed time.Duration
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		parsed = time.Duration(ms) * time.Millisecond
	} else {
		parsed, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", raw, err)
		}
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", raw)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d Duration) String() string { return time.Duration(d).String() }

// Duration converts back for use with timers and contexts.
func (d Duration) Duration() time.Duration { return time.Duration(d) }

// Secret is the SiYuan API token. Every formatting path prints [REDACTED]
// so the config struct can be logged or dumped as JSON safely; the HTTP
// client reads the raw token through Value.
type Secret string

func (s Secret) IsSet() bool   { return s != "" }
func (s Secret) Value() string { return string(s) }

func (s Secret) String() string {
	if !s.IsSet() {
		return ""
	}
	return redacted
}

func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

func (s Secret) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
