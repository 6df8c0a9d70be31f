package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Staff roles carried in the token.
const (
	RoleOwner   = "OWNER"
	RoleManager = "MANAGER"
	RoleCashier = "CASHIER"
	RoleWaiter  = "WAITER"
)

// DefaultTTL is the lifetime of an access token.
const DefaultTTL = 15 * time.Minute

type Claims struct {
	UserID   uuid.UUID `json:"user_id"`
	OutletID uuid.UUID `json:"outlet_id"`
	Role     string    `json:"role"`
	jwt.RegisteredClaims
}

// CanAccessOutlet reports whether the holder may act on outletID.
// OWNER can access any outlet.
func (c *Claims) CanAccessOutlet(outletID uuid.UUID) bool {
	return c.Role == RoleOwner || c.OutletID == outletID
}

func GenerateToken(secret string, userID, outletID uuid.UUID, role string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now()
	claims := Claims{
		UserID:   userID,
		OutletID: outletID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateToken(secret, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token has no user")
	}
	return claims, nil
}
