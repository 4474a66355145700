package utils

import "golang.org/x/crypto/bcrypt"

// BcryptHasher is the credential hasher. Cost 0 means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

func NewBcryptHasher(cost int) *BcryptHasher { return &BcryptHasher{Cost: cost} }

func (h *BcryptHasher) Hash(pw string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify is false for a mismatch and for a malformed hash alike.
func (h *BcryptHasher) Verify(pw, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw))
	return err == nil
}
