package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"github/chapool/go-custody/internal/util"
)

var (
	ErrMissingToken = errors.New("missing admin token")
	ErrInvalidToken = errors.New("invalid admin token")
	ErrNoAdminToken = errors.New("admin token not configured")
)

// Principal is attached to the request context once the admin token was verified.
type Principal struct {
	Role Role
	// TokenFingerprint identifies the token in logs without revealing it.
	TokenFingerprint string
}

// TokenFromHeader extracts the token of an "Authorization: Bearer <token>" header.
func TokenFromHeader(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}

	return ""
}

// VerifyAdminToken compares got against the configured token in constant time.
func VerifyAdminToken(expected string, got string) (*Principal, error) {
	if expected == "" {
		return nil, ErrNoAdminToken
	}
	if got == "" {
		return nil, ErrMissingToken
	}

	// hashing first keeps the comparison independent of the token length
	e := sha256.Sum256([]byte(expected))
	g := sha256.Sum256([]byte(got))
	if subtle.ConstantTimeCompare(e[:], g[:]) != 1 {
		return nil, ErrInvalidToken
	}

	return &Principal{Role: RoleAdmin, TokenFingerprint: hex.EncodeToString(g[:4])}, nil
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, util.CTXKeyAdminPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(util.CTXKeyAdminPrincipal).(*Principal)
	return p
}
