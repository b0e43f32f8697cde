// Package auth issues and checks the HS256 tokens shared by apisvc and bridgesvc.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth"
	"github.com/lestrrat-go/jwx/jwt"
)

const (
	RolePlayer  = "player"
	RoleAdmin   = "admin"
	RoleService = "service"
)

var ErrNoIdentity = errors.New("no identity in request context")

func NewTokenAuth(secret string) *jwtauth.JWTAuth {
	return jwtauth.New("HS256", []byte(secret), nil)
}

// IssueToken signs a token carrying the player id as subject.
func IssueToken(ta *jwtauth.JWTAuth, playerID int64, role string, ttl time.Duration) (string, error) {
	claims := map[string]interface{}{
		"sub":  strconv.FormatInt(playerID, 10),
		"role": role,
	}
	jwtauth.SetIssuedNow(claims)
	jwtauth.SetExpiry(claims, time.Now().Add(ttl))

	_, tokenString, err := ta.Encode(claims)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Identity returns the player id and role of a verified request.
func Identity(ctx context.Context) (int64, string, error) {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return 0, "", ErrNoIdentity
	}

	sub, _ := claims["sub"].(string)
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", ErrNoIdentity
	}
	role, _ := claims["role"].(string)
	if role == "" {
		role = RolePlayer
	}
	return id, role, nil
}

// Authenticator rejects requests without a valid verified token, answering
// in the api envelope.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if token == nil || jwt.Validate(token) != nil {
			writeError(w, http.StatusUnauthorized, jwtauth.ErrUnauthorized.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects requests whose token role is not one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, role, err := Identity(r.Context())
			if err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
			if !allowed[role] {
				writeError(w, http.StatusForbidden, "role "+role+" is not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": http.StatusText(code),
		"code":    code,
		"data":    nil,
		"error":   msg,
	})
}
