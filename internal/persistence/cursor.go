// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"example.com/itinerary/internal/domain"
)

// Plan listings page on (created_at, plan_id) descending. The cursor carries
// the last row of the previous page as an opaque token; URL-safe base64 keeps
// it usable as a query parameter without escaping.

const cursorSeparator = "|"

// EncodeCursor renders the position after the last listed plan as a token.
// A nil cursor (no further pages) encodes to the empty string.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSeparator + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor. An empty token means
// the first page.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("undecodable cursor: %w", err)
	}

	createdAt, planID, found := strings.Cut(string(decoded), cursorSeparator)
	if !found || planID == "" {
		return nil, fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("malformed cursor timestamp: %w", err)
	}
	return &domain.Cursor{CreatedAt: ts, ID: planID}, nil
}
