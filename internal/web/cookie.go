package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookieName = "session"
	stateCookieName   = "oauth_state"
	stateCookieMaxAge = 300 // 5 minutes
	tokenIssuer       = "spotify-taste-mixer"
)

var errInvalidSessionToken = errors.New("invalid session token")

// sessionCodec signs session IDs into the session cookie. The cookie holds an
// HS256 JWT whose ID claim is the session ID and whose subject is the user.
type sessionCodec struct {
	secret []byte
	now    func() time.Time
}

func (c *sessionCodec) sign(session *Session) (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		ID:        session.ID,
		Subject:   session.User.ID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// parse validates a signed token and returns the session ID it carries.
func (c *sessionCodec) parse(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return c.secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(c.now),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidSessionToken, err)
	}
	if !token.Valid || claims.ID == "" {
		return "", errInvalidSessionToken
	}
	return claims.ID, nil
}

// sessionID extracts the session ID from the request cookie.
func (c *sessionCodec) sessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	return c.parse(cookie.Value)
}

// setCookie sets the session cookie on the response.
func (c *sessionCodec) setCookie(w http.ResponseWriter, session *Session) error {
	value, err := c.sign(session)
	if err != nil {
		return fmt.Errorf("signing session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

// clearCookie removes the session cookie from the response.
func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
