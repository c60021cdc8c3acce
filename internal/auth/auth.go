package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rotctrack/internal/models"
)

var (
	// ErrInvalidCredentials is returned when the password check fails.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for a missing, malformed or expired token.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrForbidden is returned when the caller's role is not allowed in.
	ErrForbidden = errors.New("insufficient role")
)

// TokenTTL is how long issued session tokens stay valid.
const TokenTTL = 24 * time.Hour

type contextKey struct{}

// Authenticator checks the shared access password and issues and verifies
// session tokens. There is no user database; identity is whatever name and
// role the caller logs in with, which gates routes but not data mutations.
type Authenticator struct {
	password     string
	passwordHash string
	secret       []byte
}

// New builds an Authenticator. When hash is non-empty it wins over the
// plain password and is checked with bcrypt.
func New(password, hash string, secret []byte) *Authenticator {
	return &Authenticator{password: password, passwordHash: hash, secret: secret}
}

// Login verifies the password and returns the logged-in user plus a signed
// session token.
func (a *Authenticator) Login(name string, role models.Role, password string) (models.User, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.User{}, "", fmt.Errorf("%w: name required", ErrInvalidCredentials)
	}
	if !role.Valid() {
		return models.User{}, "", fmt.Errorf("%w: unknown role %q", ErrInvalidCredentials, role)
	}
	if err := a.checkPassword(password); err != nil {
		return models.User{}, "", err
	}

	user := models.User{
		ID:   uuid.NewString(),
		Name: name,
		Role: role,
	}
	token, err := a.issue(user)
	if err != nil {
		return models.User{}, "", err
	}
	return user, token, nil
}

func (a *Authenticator) checkPassword(password string) error {
	if a.passwordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
			return ErrInvalidCredentials
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}

func (a *Authenticator) issue(user models.User) (string, error) {
	now := time.Now()
	claims := models.Claims{
		UserID: user.ID,
		Name:   user.Name,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a session token.
func (a *Authenticator) Verify(tokenString string) (models.Claims, error) {
	claims := models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return models.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// ExtractTokenFromHeader pulls the bearer token out of the Authorization
// header, or "" when absent.
func ExtractTokenFromHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// Middleware rejects requests without a valid bearer token and stores the
// claims on the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := ExtractTokenFromHeader(r)
		if tokenString == "" {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		claims, err := a.Verify(tokenString)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), contextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFrom returns the claims the middleware attached to the context.
func ClaimsFrom(ctx context.Context) (models.Claims, bool) {
	claims, ok := ctx.Value(contextKey{}).(models.Claims)
	return claims, ok
}

// RequireRole wraps a handler so only the listed roles may reach it.
func RequireRole(next http.Handler, roles ...models.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFrom(r.Context())
		if !ok {
			http.Error(w, "authorization required", http.StatusUnauthorized)
			return
		}
		for _, role := range roles {
			if claims.Role == role {
				next.ServeHTTP(w, r)
				return
			}
		}
		http.Error(w, "insufficient role", http.StatusForbidden)
	})
}

// HashPassword hashes a password for use as the configured password hash.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}
