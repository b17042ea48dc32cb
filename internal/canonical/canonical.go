// Package canonical renders structured message content into a deterministic
// textual form used for similarity comparison, and extracts individual
// top-level fields without exposing the parse tree to callers.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// LooksStructured reports whether content plausibly holds a structured
// document, by inspecting the first non-whitespace byte. It never parses;
// cost is bounded by the length of the leading whitespace.
func LooksStructured(content string) bool {
	for i := 0; i < len(content); i++ {
		switch content[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '{', '[':
			return true
		default:
			return false
		}
	}
	return false
}

// Valid reports whether content parses as a single structured document.
func Valid(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	_, err := decode(content)
	return err == nil
}

// Canonicalize returns a deterministic rendering of content: excluded fields
// removed from the top level only, object members recursively key-sorted,
// array order preserved, scalars in their native textual form. Content that
// is not a top-level object, or does not parse, is returned verbatim.
func Canonicalize(content string, exclude map[string]struct{}) string {
	v, err := decode(content)
	if err != nil {
		return content
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return content
	}
	for field := range exclude {
		delete(obj, field)
	}
	out, err := encode(obj)
	if err != nil {
		return content
	}
	return out
}

// ExtractField returns the textual form of the named top-level field.
// ok is false when content is not a top-level object or the field is absent.
func ExtractField(content, name string) (value string, ok bool) {
	obj, ok := DecodeObject(content)
	if !ok {
		return "", false
	}
	v, ok := obj[name]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case nil:
		return "", false
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// DecodeObject parses content and returns the top-level object, or ok=false
// for non-objects and parse errors. Numbers are preserved exactly as
// json.Number.
func DecodeObject(content string) (map[string]any, bool) {
	v, err := decode(content)
	if err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// EncodeObject serializes an object with recursively sorted keys and no
// HTML escaping, without a trailing newline.
func EncodeObject(obj map[string]any) (string, error) {
	return encode(obj)
}

// DeepCopyObject clones a decoded object tree. Scalars are immutable and
// shared; maps and slices are copied.
func DeepCopyObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopyObject(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}

func decode(content string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	// A document followed by more tokens is not a single document.
	if dec.More() {
		return nil, errors.New("trailing content after document")
	}
	return v, nil
}

func encode(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
