package utils

import (
	"strings"

	"github.com/google/uuid"
)

// CreateToken returns an opaque 64 character token built from two random
// UUIDs. Returns "" if the random source fails.
func CreateToken() string {
	first, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	second, err := uuid.NewRandom()
	if err != nil {
		return ""
	}
	return strings.ReplaceAll(first.String()+second.String(), "-", "")
}
