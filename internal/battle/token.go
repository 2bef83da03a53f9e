package battle

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
)

type rejoinClaims struct {
	roomID    string
	sessionID string
	validity  string
}

// newToken signs a rejoin token binding a session to a room.
func (s *Service) newToken(r *Room, sessionID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"roomId":   r.id,
		"userId":   sessionID,
		"validity": r.validity,
	})
	return token.SignedString(s.secret)
}

// checkToken validates a rejoin token against the service secret.
func (s *Service) checkToken(token string) (rejoinClaims, error) {
	jwtToken, err := jwt.Parse(token, jwtKeyFunc(s.secret))
	if err != nil {
		return rejoinClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claimsMap, ok := jwtToken.Claims.(jwt.MapClaims)
	if !ok {
		return rejoinClaims{}, fmt.Errorf("%w: %w", ErrInvalidToken, errors.New("invalid jwt claims"))
	}

	var claims rejoinClaims
	for name, dst := range map[string]*string{
		"roomId":   &claims.roomID,
		"userId":   &claims.sessionID,
		"validity": &claims.validity,
	} {
		v, ok := getStringClaim(claimsMap, name)
		if !ok || v == "" {
			return rejoinClaims{}, fmt.Errorf("%w: token has no %s claim", ErrInvalidToken, name)
		}
		*dst = v
	}
	return claims, nil
}

func getStringClaim(claims jwt.MapClaims, claim string) (string, bool) {
	claimAny, ok := claims[claim]
	if !ok {
		return "", false
	}
	claimStr, ok := claimAny.(string)
	return claimStr, ok
}

func jwtKeyFunc(key []byte) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	}
}
