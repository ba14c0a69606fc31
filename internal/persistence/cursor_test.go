package persistence

import (
	"testing"
	"time"

	"example.com/itinerary/internal/domain"
)

func TestCursorRoundTrip(t *testing.T) {
	created, err := time.Parse(time.RFC3339Nano, "2026-04-01T09:30:00.123456789Z")
	if err != nil {
		t.Fatalf("bad timestamp: %v", err)
	}
	in := &domain.Cursor{CreatedAt: created, ID: "7b3f7a66-5b54-4b8e-9d3a-1f2d6c1f0a11"}

	out, err := DecodeCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.CreatedAt.Equal(in.CreatedAt) || out.ID != in.ID {
		t.Fatalf("round trip changed the cursor: %+v", out)
	}
}

func TestEncodeNilCursorIsEmpty(t *testing.T) {
	if got := EncodeCursor(nil); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestDecodeEmptyTokenMeansFirstPage(t *testing.T) {
	cursor, err := DecodeCursor("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cursor != nil {
		t.Fatalf("expected nil cursor, got %+v", cursor)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%not-base64%%%", "bm8tc2VwYXJhdG9y", "fHx8"} {
		if _, err := DecodeCursor(token); err == nil {
			t.Fatalf("expected an error for token %q", token)
		}
	}
}
