package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/solatis/farekeeper/internal/types"
)

// document is the canonical on-disk shape: {"policies": [...]}.
type document struct {
	Policies types.PolicyCollection `json:"policies"`
}

// wrapped is the decode side of document. Policies stays raw so a missing
// key can be told apart from an explicit array.
type wrapped struct {
	Policies json.RawMessage `json:"policies"`
}

// DecodeCollection normalizes a stored document into one collection:
// a bare array of saved policies, or an object wrapping it under
// "policies". An object without "policies" (or with null) is empty.
// Anything else is reported as ErrCorruptStore.
func DecodeCollection(data []byte) (types.PolicyCollection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", types.ErrCorruptStore)
	}

	switch trimmed[0] {
	case '[':
		return decodeArray(trimmed, types.ErrCorruptStore)
	case '{':
		var w wrapped
		if err := json.Unmarshal(trimmed, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrCorruptStore, err)
		}
		raw := bytes.TrimSpace(w.Policies)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return types.PolicyCollection{}, nil
		}
		if raw[0] != '[' {
			return nil, fmt.Errorf("%w: \"policies\" must be an array", types.ErrCorruptStore)
		}
		return decodeArray(raw, types.ErrCorruptStore)
	default:
		return nil, fmt.Errorf("%w: document must be an array or an object with \"policies\"", types.ErrCorruptStore)
	}
}

// DecodeSubmission decodes a replacement collection sent by a client.
// Unlike DecodeCollection it never infers an empty collection: the body
// must be a bare array or an object whose "policies" key holds an array.
// Anything else is ErrInvalidInput.
func DecodeSubmission(data []byte) (types.PolicyCollection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", types.ErrInvalidInput)
	}

	switch trimmed[0] {
	case '[':
		return decodeArray(trimmed, types.ErrInvalidInput)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
		}
		raw, ok := fields["policies"]
		if !ok {
			return nil, fmt.Errorf("%w: missing \"policies\" key", types.ErrInvalidInput)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			return nil, fmt.Errorf("%w: \"policies\" must be an array", types.ErrInvalidInput)
		}
		return decodeArray(raw, types.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: body must be an array or an object with \"policies\"", types.ErrInvalidInput)
	}
}

func decodeArray(data []byte, kind error) (types.PolicyCollection, error) {
	var c types.PolicyCollection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", kind, err)
	}
	if c == nil {
		c = types.PolicyCollection{}
	}
	return c, nil
}

// EncodeCollection serializes a collection in the canonical wrapped shape.
func EncodeCollection(c types.PolicyCollection) ([]byte, error) {
	if c == nil {
		c = types.PolicyCollection{}
	}
	return json.MarshalIndent(document{Policies: c}, "", "  ")
}
