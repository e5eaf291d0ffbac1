package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// PasswordVerifier compares passwords and burns an equivalent bcrypt comparison
// when there is no stored hash, so unknown usernames cost the same time as wrong passwords.
type PasswordVerifier struct {
	cost      int
	once      sync.Once
	dummyHash []byte
}

// NewPasswordVerifier builds a verifier whose dummy hash matches the configured cost.
func NewPasswordVerifier(cost int) *PasswordVerifier {
	return &PasswordVerifier{cost: cost}
}

// Hash hashes with the verifier's cost.
func (v *PasswordVerifier) Hash(plain string) (string, error) {
	return HashPassword(plain, v.cost)
}

// Verify checks plain against hashed.
func (v *PasswordVerifier) Verify(hashed, plain string) error {
	return ComparePassword(hashed, plain)
}

// Burn performs a comparison that always fails.
func (v *PasswordVerifier) Burn(plain string) {
	v.once.Do(func() {
		hashed, err := HashPassword("dummy-password-for-timing", v.cost)
		if err == nil {
			v.dummyHash = []byte(hashed)
		}
	})
	if v.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(plain))
	}
}
