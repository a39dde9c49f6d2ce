// backend/pkg/utils/ids.go
package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewRequestID returns a random id for correlating a request across log lines.
func NewRequestID() string {
	return uuid.NewString()
}

// ValidRequestID accepts caller-supplied ids that are short printable tokens.
func ValidRequestID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return r < 0x21 || r > 0x7e
	})
}

// ValidUserID accepts caller ids in the uuid form every user column is stored as.
func ValidUserID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
