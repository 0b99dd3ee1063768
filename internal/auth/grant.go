package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// GrantTTL is how long a group password grant stays valid.
const GrantTTL = 12 * time.Hour

const grantIssuer = "giftlist"

type grantedGroup struct {
	ID  int64  `json:"id"`
	Key string `json:"key"`
}

type grantClaims struct {
	Groups []grantedGroup `json:"groups"`
	jwt.RegisteredClaims
}

// PasswordKey fingerprints a stored group password hash. A grant carries the
// key of the hash it was issued against, so changing or clearing the
// password revokes it.
func PasswordKey(hash string) string {
	if hash == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// Granter issues and verifies the signed cookie value that records which
// groups the browser has unlocked with a group password.
type Granter struct {
	secret []byte
	now    func() time.Time
}

func NewGranter(secret string) (*Granter, error) {
	if len(secret) < 16 {
		return nil, errors.New("grant secret must be at least 16 bytes")
	}
	return &Granter{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a grant covering groups, which maps each group id to the
// PasswordKey it was unlocked with.
func (g *Granter) Issue(groups map[int64]string) (string, error) {
	entries := make([]grantedGroup, 0, len(groups))
	for _, id := range slices.Sorted(maps.Keys(groups)) {
		entries = append(entries, grantedGroup{ID: id, Key: groups[id]})
	}

	now := g.now()
	claims := grantClaims{
		Groups: entries,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    grantIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(GrantTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign grant: %w", err)
	}
	return signed, nil
}

// Parse verifies a grant and returns its group ids with their password keys.
func (g *Granter) Parse(token string) (map[int64]string, error) {
	var claims grantClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(grantIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse grant: %w", err)
	}

	groups := make(map[int64]string, len(claims.Groups))
	for _, gg := range claims.Groups {
		groups[gg.ID] = gg.Key
	}
	return groups, nil
}
