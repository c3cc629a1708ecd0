// Package handid generates hand identifiers: UUIDv7 values written as 26
// lowercase base32 characters, so ids sort by creation time.
package handid

import (
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"
)

// Crockford's base32 alphabet, lowercased. It is in ASCII order, which keeps
// encoded ids in the same order as the UUIDs.
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

var encoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// New returns a fresh hand id.
func New() string {
	return Encode(uuid.Must(uuid.NewV7()))
}

// Encode writes u in hand id form.
func Encode(u uuid.UUID) string {
	return encoding.EncodeToString(u[:])
}

// Parse decodes a hand id back into its UUID.
func Parse(id string) (uuid.UUID, error) {
	if len(id) != 26 {
		return uuid.Nil, fmt.Errorf("hand ID must be exactly 26 characters, got %d", len(id))
	}
	b, err := encoding.DecodeString(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid hand ID %q: %w", id, err)
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, err
	}
	if u.Version() != 7 {
		return uuid.Nil, fmt.Errorf("hand ID %q is not time ordered", id)
	}
	return u, nil
}

// Validate checks that id is a well formed hand id.
func Validate(id string) error {
	_, err := Parse(id)
	return err
}
