package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// CreatedFormat renders creation times at a fixed width so that text order is time order.
const CreatedFormat = "2006-01-02T15:04:05.000000000Z"

// Cursor is a position in a listing ordered by (created, id).
type Cursor struct {
	Created time.Time
	ID      string
}

// FormatCreated renders t in CreatedFormat, in UTC.
func FormatCreated(t time.Time) string {
	return t.UTC().Format(CreatedFormat)
}

// After reports whether the row (created, id) sorts strictly after c.
func (c Cursor) After(created time.Time, id string) bool {
	if !created.Equal(c.Created) {
		return created.After(c.Created)
	}
	return id > c.ID
}

// EncodeCursor creates an opaque page token for c.
func EncodeCursor(c Cursor) string {
	return EncodeMultiFieldToken(FormatCreated(c.Created), c.ID)
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token yields (nil, nil).
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	parts, err := DecodeMultiFieldToken(token)
	if err != nil {
		return nil, err
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid pagination token format (split)")
	}
	created, err := time.Parse(CreatedFormat, parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid pagination token format (created parse): %w", err)
	}
	return &Cursor{Created: created, ID: parts[1]}, nil
}

// EncodeMultiFieldToken creates a token with any number of string fields
func EncodeMultiFieldToken(fields ...string) string {
	tokenStr := strings.Join(fields, "|")
	return base64.RawURLEncoding.EncodeToString([]byte(tokenStr))
}

// DecodeMultiFieldToken decodes a token into its component fields. The last field may itself
// contain the separator.
func DecodeMultiFieldToken(token string, limit ...int) ([]string, error) {
	decodedBytes, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("invalid pagination token format (base64 decode): %w", err)
	}

	n := 2
	if len(limit) > 0 {
		n = limit[0]
	}
	return strings.SplitN(string(decodedBytes), "|", n), nil
}
