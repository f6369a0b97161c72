package interchange

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrUnsupportedPayload indicates JSON that matches no known source.
	ErrUnsupportedPayload = errors.New("unsupported JSON payload; provide MissionProject, Node, UxS, or Mesh Architect JSON")
	// ErrMalformed indicates a recognised payload with invalid content.
	ErrMalformed = errors.New("malformed payload")
	// ErrUnsupportedVersion indicates a MissionProject older than 1.0.
	ErrUnsupportedVersion = errors.New("unsupported MissionProject schema version")
)

// newID generates identifiers for imported records that carry none.
var newID = func(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// object is a JSON object whose members are decoded lazily so unknown keys
// can be carried through untouched.
type object map[string]json.RawMessage

func decodeObject(raw json.RawMessage) (object, error) {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: expected a JSON object: %v", ErrMalformed, err)
	}
	if o == nil {
		return object{}, nil
	}
	return o, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// present reports whether key exists with a non-null value.
func (o object) present(key string) bool {
	raw, ok := o[key]
	return ok && !isNull(raw)
}

// str returns the first key holding a non-empty string.
func (o object) str(keys ...string) (string, error) {
	for _, k := range keys {
		if !o.present(k) {
			continue
		}
		var s string
		if err := json.Unmarshal(o[k], &s); err != nil {
			return "", fmt.Errorf("%w: %q must be a string", ErrMalformed, k)
		}
		if s != "" {
			return s, nil
		}
	}
	return "", nil
}

// num returns the first key holding a number, or nil.
func (o object) num(keys ...string) (*float64, error) {
	for _, k := range keys {
		if !o.present(k) {
			continue
		}
		var f float64
		if err := json.Unmarshal(o[k], &f); err != nil {
			return nil, fmt.Errorf("%w: %q must be a number", ErrMalformed, k)
		}
		return &f, nil
	}
	return nil, nil
}

// flag returns the first key holding a boolean, or nil.
func (o object) flag(keys ...string) (*bool, error) {
	for _, k := range keys {
		if !o.present(k) {
			continue
		}
		var b bool
		if err := json.Unmarshal(o[k], &b); err != nil {
			return nil, fmt.Errorf("%w: %q must be a boolean", ErrMalformed, k)
		}
		return &b, nil
	}
	return nil, nil
}

// strs returns the first key holding a string array.
func (o object) strs(keys ...string) ([]string, error) {
	for _, k := range keys {
		if !o.present(k) {
			continue
		}
		var out []string
		if err := json.Unmarshal(o[k], &out); err != nil {
			return nil, fmt.Errorf("%w: %q must be an array of strings", ErrMalformed, k)
		}
		return out, nil
	}
	return nil, nil
}

// array returns the elements of key; ok is false when key is absent or not
// an array.
func (o object) array(key string) ([]json.RawMessage, bool) {
	if !o.present(key) {
		return nil, false
	}
	var out []json.RawMessage
	if err := json.Unmarshal(o[key], &out); err != nil {
		return nil, false
	}
	return out, true
}

// sub decodes key as a nested object; absent keys give an empty object.
func (o object) sub(key string) (object, error) {
	if !o.present(key) {
		return object{}, nil
	}
	sub, err := decodeObject(o[key])
	if err != nil {
		return nil, fmt.Errorf("%w: %q must be an object", ErrMalformed, key)
	}
	return sub, nil
}

// token returns key as text whether it was encoded as a string or a number,
// so `"band": 2.4` and `"band": "2.4"` read the same.
func (o object) token(keys ...string) (string, error) {
	for _, k := range keys {
		if !o.present(k) {
			continue
		}
		var s string
		if err := json.Unmarshal(o[k], &s); err == nil {
			if s != "" {
				return s, nil
			}
			continue
		}
		var f float64
		if err := json.Unmarshal(o[k], &f); err != nil {
			return "", fmt.Errorf("%w: %q must be a string or number", ErrMalformed, k)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
	return "", nil
}

// extras returns members whose keys are not in known.
func (o object) extras(known map[string]bool) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range o {
		if known[k] {
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

func keySet(keys ...string) map[string]bool {
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out
}

// leadingFloat parses the numeric prefix of a version string such as
// "2.0.0". ok is false when there is no numeric prefix.
func leadingFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	dot := false
	for end < len(s) {
		c := s[end]
		if c >= '0' && c <= '9' {
			end++
			continue
		}
		if c == '.' && !dot {
			dot = true
			end++
			continue
		}
		break
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
