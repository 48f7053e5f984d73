package lockmgr

import (
	"github.com/google/uuid"
)

// generateOwnerID creates a new unique owner token (random UUID v4).
func generateOwnerID() (Token, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return Token(id.String()), nil
}
