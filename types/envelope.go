package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is the structured message agents exchange.
// Recipient drives routing; Phase carries the Counselor's conversational state.
type Envelope struct {
	Phase     string `json:"phase"`
	Recipient Party  `json:"recipient"`
	Message   string `json:"message"`
}

// Marshal encodes the envelope in wire form.
func (e Envelope) Marshal() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// ToStudent reports whether the envelope is addressed to the student.
func (e Envelope) ToStudent() bool { return e.Recipient == PartyStudent }

// wireEnvelope distinguishes absent and null keys from empty strings.
type wireEnvelope struct {
	Phase     *string `json:"phase"`
	Recipient *string `json:"recipient"`
	Message   *string `json:"message"`
}

// ParseEnvelope decodes an agent reply into an Envelope.
//
// Models in JSON mode still occasionally wrap output in code fences or
// surround it with prose, so the first balanced JSON object is extracted
// before decoding. The object must hold exactly the three keys, each a
// string, and the recipient must be "student" or "suny"; anything else is
// ErrMalformedEnvelope.
func ParseEnvelope(raw string) (Envelope, error) {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return Envelope{}, malformed("no JSON object found", nil)
	}

	dec := json.NewDecoder(strings.NewReader(obj))
	dec.DisallowUnknownFields()
	var w wireEnvelope
	if err := dec.Decode(&w); err != nil {
		return Envelope{}, malformed("invalid envelope JSON", err)
	}
	for _, f := range []struct {
		key string
		val *string
	}{{"phase", w.Phase}, {"recipient", w.Recipient}, {"message", w.Message}} {
		if f.val == nil {
			return Envelope{}, malformed(fmt.Sprintf("missing or null %q", f.key), nil)
		}
	}

	env := Envelope{
		Phase:     *w.Phase,
		Recipient: Party(strings.ToLower(strings.TrimSpace(*w.Recipient))),
		Message:   *w.Message,
	}
	if env.Recipient != PartyStudent && env.Recipient != PartySuny {
		return Envelope{}, malformed(fmt.Sprintf("unknown recipient %q", env.Recipient), nil)
	}
	return env, nil
}

func malformed(reason string, cause error) *Error {
	e := NewError(ErrMalformedEnvelope, "malformed envelope: "+reason)
	if cause != nil {
		e = e.WithCause(cause)
	}
	return e
}

// ExtractJSONObject returns the first balanced {...} in s, honouring strings
// and escapes so braces inside message text do not end the scan early.
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
