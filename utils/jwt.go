package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	GuestID        uint  `json:"guest_id"`
	TelegramUserID int64 `json:"telegram_user_id"`
	jwt.RegisteredClaims
}

// GenerateAccessToken mints a short-lived session token so the WebApp
// does not have to resend initData on every request.
func GenerateAccessToken(secret string, guestID uint, telegramUserID int64, ttl time.Duration) (string, error) {
	claims := Claims{
		GuestID:        guestID,
		TelegramUserID: telegramUserID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
