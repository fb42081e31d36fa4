package ops

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Address represents a validated card address.
type Address struct {
	ByID bool
	ID   string
	Name string // normalized
}

// ValidateAddress validates addressing parameters and returns a normalized Address.
// Exactly one of id or name must be given.
func ValidateAddress(id, name string) (*Address, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)

	if id != "" && name != "" {
		return nil, errors.NewInvalidRequest("specify either id or name, not both")
	}
	if id == "" && name == "" {
		return nil, errors.NewInvalidRequest("must specify either id or name")
	}
	if id != "" {
		return &Address{ByID: true, ID: id}, nil
	}

	nameNorm := card.Normalize(name)
	if nameNorm == "" {
		return nil, errors.NewInvalidRequest("name must not be empty")
	}
	return &Address{Name: nameNorm}, nil
}

// clampPage applies list limit defaults and bounds.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
