package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims grants read access to a single stored object until ExpiresAt.
type Claims struct {
	Object string `json:"obj"`
	jwtlib.RegisteredClaims
}

func GenerateToken(object string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Object: object,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenString, &Claims{}, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method.Alg() != jwtlib.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// VerifyObject parses the token and checks that it was minted for object.
func VerifyObject(tokenString, object string, secret []byte) error {
	claims, err := ParseToken(tokenString, secret)
	if err != nil {
		return err
	}
	if claims.Object != object {
		return errors.New("token not valid for object")
	}
	return nil
}
