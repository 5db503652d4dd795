package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RawSnapshot is an immutable copy of one landing page payload, retained for
// audit and diffing. It is appended once per successful run and never updated
// or deleted.
type RawSnapshot struct {
	ID          uuid.UUID
	JSONData    string
	ScrapedDate time.Time
	SourceURL   string
	JSONHash    string
	JSONVersion *string
}

// NewSnapshot builds a snapshot of the decoded payload.
//
// The hash is a SHA-256 over the canonical serialization of the payload, so
// byte-identical payloads hash identically regardless of the key order the
// storefront emitted. JSONVersion stays nil; the payload carries no version
// marker.
func NewSnapshot(payload map[string]any, sourceURL string, now time.Time) (RawSnapshot, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return RawSnapshot{}, fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return RawSnapshot{
		ID:          uuid.New(),
		JSONData:    string(canonical),
		ScrapedDate: now,
		SourceURL:   sourceURL,
		JSONHash:    hex.EncodeToString(sum[:]),
	}, nil
}

// CanonicalJSON serializes a payload with lexically sorted object keys.
// encoding/json already sorts map keys, so a decode/encode round trip is the
// canonical form.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	return json.Marshal(payload)
}
