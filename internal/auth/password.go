package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword produces a bcrypt hash of plain. Costs outside bcrypt's
// valid range fall back to the library default, so a zero-value config
// still yields a usable hash. Account provisioning lives outside this
// service; this exists for seeding staff credentials.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword reports whether plain matches the stored bcrypt hash,
// returning bcrypt's mismatch error when it does not.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
