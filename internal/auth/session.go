// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie carries the signed session identity between requests.
const SessionCookie = "session_token"

// privateKey and publicKey sign and verify session tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TokenExpireTimeSec indicates how many seconds until token expiration
	// (0 => never).
	TokenExpireTimeSec int
)

// parseTokenExpireTime reads the TOKEN_EXPIRE_TIME env var.
func parseTokenExpireTime() {
	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		TokenExpireTimeSec = 0
		return
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		fmt.Printf("failed to parse token expire time: %v\n", err)
		os.Exit(1)
	}
	TokenExpireTimeSec = int(d.Seconds())
}

// Init generates a fresh ed25519 key pair at runtime and sets the token
// expiration. Keys are not persisted: sessions deliberately do not survive a
// process restart.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ed25519 key pair: %v\n", err)
		os.Exit(1)
	}
	parseTokenExpireTime()
}

// NewUserID draws a small random numeric identity for a fresh browser
// session. There is no collision check across sessions; two browsers can in
// principle draw the same id.
func NewUserID() string {
	return strconv.Itoa(rand.Intn(90000) + 10000)
}

// CreateSessionToken signs a token with "sub" = userID.
func CreateSessionToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
	}
	if TokenExpireTimeSec > 0 {
		claims["exp"] = time.Now().Add(time.Duration(TokenExpireTimeSec) * time.Second).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// AuthenticateSession verifies a token string and returns its "sub" claim.
func AuthenticateSession(tokenString string) (string, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("session token parse error: %w", err)
	}
	if !t.Valid {
		return "", fmt.Errorf("invalid session token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid session claims")
	}
	userID, ok := claims["sub"].(string)
	if !ok {
		return "", fmt.Errorf("missing sub in session token")
	}
	return userID, nil
}

// UserIDFromRequest extracts the session identity from the request cookie,
// or "" when the caller has no valid session.
func UserIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	userID, err := AuthenticateSession(cookie.Value)
	if err != nil {
		return ""
	}
	return userID
}

// EnsureSession returns the caller's session identity, minting a fresh one
// and setting the cookie when the request arrives without a valid token.
func EnsureSession(w http.ResponseWriter, r *http.Request) (string, error) {
	if userID := UserIDFromRequest(r); userID != "" {
		return userID, nil
	}

	userID := NewUserID()
	token, err := CreateSessionToken(userID)
	if err != nil {
		return "", fmt.Errorf("failed to create session token: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		MaxAge:   TokenExpireTimeSec,
	})
	return userID, nil
}
