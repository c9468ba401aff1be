package model

import (
	"encoding/json"
	"fmt"
	"io"
)

const redacted Secret = "[REDACTED]"

// Secret holds a credential. Every textual rendering meant for humans prints
// a redaction marker; use Reveal to get the value. MarshalText keeps the real
// value so config documents still round-trip. Decoding goes through the
// string kind, so non-string values are rejected.
type Secret string

// Reveal returns the underlying value.
func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) String() string {
	return string(redacted)
}

func (s Secret) GoString() string {
	return fmt.Sprintf("model.Secret(%q)", string(redacted))
}

// Format covers every fmt verb, including %v inside structs and %#v.
func (s Secret) Format(f fmt.State, verb rune) {
	switch verb {
	case 'q':
		fmt.Fprintf(f, "%q", string(redacted))
	case 'v':
		if f.Flag('#') {
			io.WriteString(f, s.GoString())
			return
		}
		io.WriteString(f, string(redacted))
	default:
		io.WriteString(f, string(redacted))
	}
}

// MarshalJSON redacts; JSON is what structured loggers reach for.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(redacted))
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s), nil
}
