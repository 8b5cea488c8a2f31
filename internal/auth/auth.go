package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/tapgate/server/internal/tapgate/store"
	"github.com/tapgate/server/internal/tapgate/types"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims carries the operator identity inside the bearer token.  Role and
// category travel in the token so the verify path does not need an
// operator lookup per scan.
type Claims struct {
	Role     types.Role `json:"role"`
	Category string     `json:"category"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 bearer tokens for operators.
type Authenticator struct {
	operators store.OperatorStore
	secret    []byte
	ttl       time.Duration
}

func NewAuthenticator(operators store.OperatorStore, secret []byte, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{operators: operators, secret: secret, ttl: ttl}
}

// Login checks the operator's credentials and returns a signed token plus
// the operator identity.  Unknown usernames and bad passwords are
// indistinguishable to the caller.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, types.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", types.Operator{}, ErrInvalidCredentials
	}

	rec, err := a.operators.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrOperatorNotFound) {
		return "", types.Operator{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", types.Operator{}, err
	}

	if err := bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(password)); err != nil {
		return "", types.Operator{}, ErrInvalidCredentials
	}

	op := types.Operator{Username: rec.Username, Role: rec.Role, Category: rec.Category}
	token, err := a.IssueToken(op)
	if err != nil {
		return "", types.Operator{}, err
	}
	return token, op, nil
}

func (a *Authenticator) IssueToken(op types.Operator) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role:     op.Role,
		Category: op.Category,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// VerifyToken parses and validates a bearer token and returns the operator
// it identifies.
func (a *Authenticator) VerifyToken(tokenString string) (types.Operator, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return types.Operator{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return types.Operator{}, ErrInvalidToken
	}

	return types.Operator{
		Username: claims.Subject,
		Role:     claims.Role,
		Category: claims.Category,
	}, nil
}

// HashPassword wraps bcrypt for enrollment/seeding call sites.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
