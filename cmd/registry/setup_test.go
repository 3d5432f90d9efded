package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/eventsite/registry/internal/model"
	"github.com/eventsite/registry/internal/store"
)

func TestInitDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "init.sqlite3")

	database, password, err := initDatabase(path, "Admin")
	if err != nil {
		t.Fatalf("initDatabase: %v", err)
	}
	defer database.Close()

	if len(password) != 16 {
		t.Errorf("password length = %d, want 16", len(password))
	}

	user, err := store.GetActiveUserByUsername(context.Background(), database, "Admin")
	if err != nil || user == nil {
		t.Fatalf("admin user missing: %v", err)
	}
	if user.Role != model.RoleAdmin {
		t.Errorf("role = %q, want admin", user.Role)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		t.Errorf("generated password does not match stored hash")
	}
}

func TestGeneratePassword(t *testing.T) {
	a, err := generatePassword(24)
	if err != nil {
		t.Fatalf("generatePassword: %v", err)
	}
	b, _ := generatePassword(24)
	if len(a) != 24 || a == b {
		t.Errorf("expected distinct 24 character passwords, got %q and %q", a, b)
	}
	if strings.ContainsAny(a, " \t\n") {
		t.Errorf("password contains whitespace: %q", a)
	}
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("REGISTRY_TEST_STR", "  custom.sqlite3 ")
	t.Setenv("REGISTRY_TEST_FLOAT", "0.5")
	t.Setenv("REGISTRY_TEST_BAD", "fast")

	if got := envString("REGISTRY_TEST_STR", "x"); got != "custom.sqlite3" {
		t.Errorf("envString = %q", got)
	}
	if got := envString("REGISTRY_TEST_UNSET", "x"); got != "x" {
		t.Errorf("envString default = %q", got)
	}
	if got := envFloat("REGISTRY_TEST_FLOAT", 2); got != 0.5 {
		t.Errorf("envFloat = %v", got)
	}
	if got := envFloat("REGISTRY_TEST_BAD", 2); got != 2 {
		t.Errorf("envFloat invalid = %v, want default", got)
	}
}
