package utils

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func usePasswordCost(t *testing.T, cost int) {
	t.Helper()
	previous := passwordCost
	t.Cleanup(func() { passwordCost = previous })
	SetPasswordCost(cost)
}

func TestPasswordHashing(t *testing.T) {
	usePasswordCost(t, bcrypt.MinCost)

	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if cost, _ := bcrypt.Cost([]byte(hash)); cost != bcrypt.MinCost {
		t.Fatalf("expected hash cost %d, got %d", bcrypt.MinCost, cost)
	}
	if !CheckPassword("correct horse battery", hash) {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword("correct horse", hash) {
		t.Fatal("expected different password to be rejected")
	}
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatal("expected malformed hash to be rejected")
	}
}

func TestHashPasswordLengthLimit(t *testing.T) {
	usePasswordCost(t, bcrypt.MinCost)

	if _, err := HashPassword(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Fatalf("expected %d bytes to be accepted, got %v", MaxPasswordBytes, err)
	}

	// 40 runes, 80 bytes.
	multiByte := strings.Repeat("é", 40)
	if _, err := HashPassword(multiByte); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong for %d bytes, got %v", len(multiByte), err)
	}
}

func TestSetPasswordCost(t *testing.T) {
	usePasswordCost(t, bcrypt.DefaultCost)

	SetPasswordCost(bcrypt.MaxCost + 1)
	if passwordCost != bcrypt.DefaultCost {
		t.Fatalf("expected out-of-range cost to fall back to %d, got %d", bcrypt.DefaultCost, passwordCost)
	}
	SetPasswordCost(bcrypt.MinCost + 1)
	if passwordCost != bcrypt.MinCost+1 {
		t.Fatalf("expected cost %d, got %d", bcrypt.MinCost+1, passwordCost)
	}
}

func TestNeedsRehash(t *testing.T) {
	usePasswordCost(t, bcrypt.MinCost)
	cheap, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if NeedsRehash(cheap) {
		t.Fatal("expected hash at the configured cost to be current")
	}

	SetPasswordCost(bcrypt.MinCost + 1)
	if !NeedsRehash(cheap) {
		t.Fatal("expected hash below the configured cost to need a rehash")
	}
	if !NeedsRehash("not-a-bcrypt-hash") {
		t.Fatal("expected malformed hash to need a rehash")
	}
}
