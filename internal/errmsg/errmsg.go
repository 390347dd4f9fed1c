// Package errmsg extracts a printable message from values of unknown shape.
//
// Panels, session providers and decoded JSON payloads report failures as plain
// errors, bare strings or objects carrying a "message" field. Message collapses
// all of them into one string so callers never branch on the error shape.
package errmsg

import (
	"errors"
	"fmt"
)

// Unknown is returned when nothing useful can be extracted.
const Unknown = "unknown error"

// Message returns the human readable message carried by v.
func Message(v any) string {
	switch val := v.(type) {
	case nil:
		return Unknown
	case error:
		if msg := val.Error(); msg != "" {
			return msg
		}
		return Unknown
	case string:
		if val == "" {
			return Unknown
		}
		return val
	case fmt.Stringer:
		return Message(val.String())
	case map[string]any:
		for _, key := range []string{"message", "error", "msg"} {
			if inner, ok := val[key]; ok {
				return Message(inner)
			}
		}
		return Unknown
	case map[string]string:
		for _, key := range []string{"message", "error", "msg"} {
			if inner, ok := val[key]; ok && inner != "" {
				return inner
			}
		}
		return Unknown
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Wrap turns an arbitrary value into an error carrying Message(v).
// Values that already are errors are returned unchanged so errors.Is keeps working.
func Wrap(v any) error {
	if v == nil {
		return nil
	}
	if err, ok := v.(error); ok {
		return err
	}
	return errors.New(Message(v))
}
