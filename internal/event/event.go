// Package event parses object-notification payloads into storage references.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidEvent is returned when a payload carries no usable object
// reference.
var ErrInvalidEvent = errors.New("event: no object reference in payload")

// ObjectRef identifies one object in a bucket.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// envelope covers both notification shapes: the wrapped bus form
// {"detail":{"bucket":{"name":...},"object":{"key":...}}} and the direct
// {"bucket":...,"key":...} pair used for manual invocation.
type envelope struct {
	Detail *struct {
		Bucket struct {
			Name string `json:"name"`
		} `json:"bucket"`
		Object struct {
			Key string `json:"key"`
		} `json:"object"`
	} `json:"detail"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// ParseObjectEvent extracts the object reference from a notification
// payload. A complete wrapped form wins over direct fields; an incomplete
// wrapped form falls back to them. Keys arrive URL-escaped from the bus
// (%-escapes, "+" for spaces) and are decoded here.
func ParseObjectEvent(data []byte) (ObjectRef, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ObjectRef{}, fmt.Errorf("event: decoding payload: %w", err)
	}

	ref := ObjectRef{Bucket: env.Bucket, Key: env.Key}
	if env.Detail != nil && env.Detail.Bucket.Name != "" && env.Detail.Object.Key != "" {
		ref = ObjectRef{Bucket: env.Detail.Bucket.Name, Key: env.Detail.Object.Key}
	}

	if ref.Bucket == "" || ref.Key == "" {
		return ObjectRef{}, ErrInvalidEvent
	}

	ref.Key = decodeKey(ref.Key)
	return ref, nil
}

// decodeKey undoes bus-side URL escaping. Keys without escape characters
// pass through untouched, as does anything that fails to decode.
func decodeKey(key string) string {
	if !strings.ContainsAny(key, "%+") {
		return key
	}
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}
