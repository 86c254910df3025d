package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
)

// DomainEvent prefixes every event digest.
// The version suffix leaves room for a future algorithm migration.
const DomainEvent = "memento/event/v1"

// IDLength is the length of a hex-encoded SHA-256 event id.
const IDLength = sha256.Size * 2

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The NUL separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed id of an event.
//
// The digest covers op, content, timestamp, meta and the parent set.
// Parents are sorted and de-duplicated first, so callers may pass them in any
// order. Meta is an object and therefore key-sorted by the canonical encoder.
func EventID(op Op, content string, timestamp int64, meta map[string]string, parents []string) (string, error) {
	if err := checkPayload(op, content, meta); err != nil {
		return "", err
	}
	obj := Object{
		"op":        String(op),
		"content":   String(content),
		"timestamp": Int(timestamp),
		"meta":      StringMap(meta),
		"parents":   StringList(NormalizeParents(parents)),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(op Op, content string, timestamp int64, meta map[string]string, parents []string) string {
	id, err := EventID(op, content, timestamp, meta, parents)
	if err != nil {
		panic(err)
	}
	return id
}

// NormalizeParents returns a sorted, de-duplicated copy of ids.
// The result is never nil.
func NormalizeParents(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	slices.Sort(out)
	return slices.Compact(out)
}

// ValidID reports whether s has the shape of an event id:
// 64 lowercase hexadecimal characters.
func ValidID(s string) bool {
	if len(s) != IDLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// ShortID abbreviates an id for display.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
