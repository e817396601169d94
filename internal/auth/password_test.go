package auth

import "testing"

func TestHashPasswordClampsInvalidCost(t *testing.T) {
	hashed, err := HashPassword("hunter2", 0)
	if err != nil {
		t.Fatalf("hash with zero cost: %v", err)
	}
	if err := ComparePassword(hashed, "hunter2"); err != nil {
		t.Fatalf("round trip must verify: %v", err)
	}
}

func TestComparePasswordRejectsMismatch(t *testing.T) {
	hashed, err := HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if ComparePassword(hashed, "hunter3") == nil {
		t.Fatal("wrong password must not verify")
	}
}
