// Package cursor encodes and decodes the opaque pagination tokens handed to
// listing clients. A token carries the sort key to resume after and the page
// size; callers pass tokens through and never build or parse them.
package cursor

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// DefaultLimit is the page size used when a cursor does not carry one.
const DefaultLimit = 5

// ErrMalformed is returned when a token cannot be decoded into a cursor.
var ErrMalformed = errors.New("malformed cursor")

var encoding = base64.RawURLEncoding

// Cursor is the decoded form of a pagination token. An empty Last means the
// start of the sorted order. Last must be valid UTF-8 to survive a round trip.
type Cursor struct {
	Last  string `json:"last,omitempty"`
	Limit int    `json:"limit"`
}

// wireCursor fixes the field order of the encoded object and lets Decode
// tell a missing limit apart from a zero one.
type wireCursor struct {
	Limit *int   `json:"limit"`
	Last  string `json:"last,omitempty"`
}

// Codec converts cursors to tokens and back.
type Codec struct {
	defaultLimit int
}

// NewCodec returns a codec that substitutes defaultLimit for a zero limit
// on encode. Non-positive values fall back to DefaultLimit.
func NewCodec(defaultLimit int) Codec {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	return Codec{defaultLimit: defaultLimit}
}

// DefaultLimit returns the limit substituted for empty cursors.
func (c Codec) DefaultLimit() int {
	if c.defaultLimit <= 0 {
		return DefaultLimit
	}
	return c.defaultLimit
}

// Encode serializes cur into a token. A non-positive limit is replaced with
// the default so every encoded token carries an explicit limit.
func (c Codec) Encode(cur Cursor) string {
	limit := cur.Limit
	if limit <= 0 {
		limit = c.DefaultLimit()
	}

	// a struct of a string and an int always marshals
	data, _ := json.Marshal(wireCursor{Limit: &limit, Last: cur.Last})
	return encoding.EncodeToString(data)
}

// Decode parses a token produced by Encode. Tokens that are not valid
// encodings of the expected object, including ones whose limit is missing
// or not positive, fail with ErrMalformed.
func (c Codec) Decode(token string) (Cursor, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if !utf8.Valid(raw) {
		return Cursor{}, fmt.Errorf("%w: invalid UTF-8", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var wire wireCursor
	if err := dec.Decode(&wire); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return Cursor{}, fmt.Errorf("%w: trailing data", ErrMalformed)
	}

	if wire.Limit == nil {
		return Cursor{}, fmt.Errorf("%w: missing limit", ErrMalformed)
	}
	if *wire.Limit <= 0 {
		return Cursor{}, fmt.Errorf("%w: limit must be positive, got %d", ErrMalformed, *wire.Limit)
	}

	return Cursor{Last: wire.Last, Limit: *wire.Limit}, nil
}

var defaultCodec = NewCodec(DefaultLimit)

// Encode encodes cur with the package default limit.
func Encode(cur Cursor) string {
	return defaultCodec.Encode(cur)
}

// Decode decodes token with the package default codec.
func Decode(token string) (Cursor, error) {
	return defaultCodec.Decode(token)
}
