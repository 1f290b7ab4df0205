package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

func appendRoleChar(token string, role Role) string {
	switch role {
	case RoleUser:
		return token + "1"
	}
	return token
}

func expectedRoleChar(role Role) string {
	switch role {
	case RoleUser:
		return "1"
	}
	return ""
}

func CreateToken(user User, role Role, validUntil int64) (string, error) {
	secret, ok := secretFor(role)
	if !ok {
		return "", fmt.Errorf("no secret configured for role")
	}

	if validUntil == 0 {
		validUntil = time.Now().Add(15 * time.Minute).Unix()
	}

	claims := jwt.MapClaims{
		"id":    user.Id,
		"email": user.Email,
		"exp":   validUntil,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}

	return appendRoleChar(tokenString, role), nil
}

// ParseToken verifies the signature, the role suffix and the expiry.
func ParseToken(tokenString string, role Role) (jwt.MapClaims, error) {
	if len(tokenString) == 0 {
		return nil, fmt.Errorf("token string is empty")
	}

	if tokenString[len(tokenString)-1:] != expectedRoleChar(role) {
		return nil, fmt.Errorf("invalid role character in token")
	}
	tokenString = tokenString[:len(tokenString)-1]

	secret, ok := secretFor(role)
	if !ok {
		return nil, fmt.Errorf("no secret configured for role")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %v", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid - unauthorized")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("claims of unauthorized type")
	}

	return claims, nil
}

// ParseUserClaims parses a user access token into Claims.
func ParseUserClaims(tokenString string) (Claims, error) {
	raw, err := ParseToken(tokenString, RoleUser)
	if err != nil {
		return Claims{}, err
	}

	id, _ := raw["id"].(string)
	if id == "" {
		return Claims{}, fmt.Errorf("token missing subject")
	}
	email, _ := raw["email"].(string)

	var exp int64
	if v, ok := raw["exp"].(float64); ok {
		exp = int64(v)
	}
	if exp == 0 || time.Now().Unix() > exp {
		return Claims{}, fmt.Errorf("token expired")
	}

	return Claims{UserID: id, Email: email, ExpiresAt: exp}, nil
}
