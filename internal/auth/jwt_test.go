package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiwari-pos/floor/internal/auth"
)

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	userID := uuid.New()
	outletID := uuid.New()

	token, err := auth.GenerateToken(secret, userID, outletID, auth.RoleWaiter, 0)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != userID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, userID)
	}
	if claims.OutletID != outletID {
		t.Errorf("outlet ID: got %v, want %v", claims.OutletID, outletID)
	}
	if claims.Role != auth.RoleWaiter {
		t.Errorf("role: got %v, want %v", claims.Role, auth.RoleWaiter)
	}
	if claims.Subject != userID.String() {
		t.Errorf("subject: got %v, want %v", claims.Subject, userID)
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != auth.DefaultTTL {
		t.Errorf("ttl: got %v, want %v", got, auth.DefaultTTL)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", uuid.New(), uuid.New(), auth.RoleCashier, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestGenerateTokenNonPositiveTTL(t *testing.T) {
	token, err := auth.GenerateToken("secret", uuid.New(), uuid.New(), auth.RoleCashier, -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	// A non-positive ttl falls back to the default, so the token is valid.
	if _, err := auth.ValidateToken("secret", token); err != nil {
		t.Fatalf("validate token: %v", err)
	}
}

func TestValidateTokenWithoutUser(t *testing.T) {
	token, err := auth.GenerateToken("secret", uuid.Nil, uuid.New(), auth.RoleCashier, time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := auth.ValidateToken("secret", token); err == nil {
		t.Fatal("expected error for token without user")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestCanAccessOutlet(t *testing.T) {
	home := uuid.New()
	other := uuid.New()

	waiter := &auth.Claims{UserID: uuid.New(), OutletID: home, Role: auth.RoleWaiter}
	if !waiter.CanAccessOutlet(home) {
		t.Error("waiter should access home outlet")
	}
	if waiter.CanAccessOutlet(other) {
		t.Error("waiter should not access other outlet")
	}

	owner := &auth.Claims{UserID: uuid.New(), OutletID: home, Role: auth.RoleOwner}
	if !owner.CanAccessOutlet(other) {
		t.Error("owner should access any outlet")
	}
}
