package principal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/vtumart/internal/apperrors"
)

const (
	defaultSigningMethod = "HS256"
	defaultTokenTTL      = 15 * time.Minute
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID uuid.UUID `json:"uid"`
}

// Verifier authenticates requests by a compact access token. Issuing
// sessions is someone else's job: this service only checks the
// signature and extracts the principal's user id
type Verifier struct {
	// Secret key the tokens are signed with
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod
}

func NewVerifier(secretKey string) (*Verifier, error) {
	if secretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	return &Verifier{
		key: secretKey,
		alg: jwt.GetSigningMethod(defaultSigningMethod),
	}, nil
}

// FromRequest reads the bearer token and returns the authenticated
// user id
func (v *Verifier) FromRequest(r *http.Request) (uuid.UUID, error) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return uuid.Nil, apperrors.ErrMissingCredential
	}

	return v.Parse(token)
}

// Parse and validate access token
func (v *Verifier) Parse(access string) (uuid.UUID, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) {
			return []byte(v.key), nil
		},
		jwt.WithValidMethods([]string{v.alg.Alg()}),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("error while parsing or validating token. Err: %w", err)
	}

	if claims.UserID == uuid.Nil {
		return uuid.Nil, errors.New("token carries no user id")
	}
	return claims.UserID, nil
}

// Issue signs an access token for the user. Used by tooling and tests,
// the service itself never hands out tokens
func (v *Verifier) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	now := time.Now().Truncate(time.Second)

	token := jwt.NewWithClaims(
		v.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			},
			UserID: userID,
		},
	)

	signed, err := token.SignedString([]byte(v.key))
	if err != nil {
		return "", fmt.Errorf("error while signing access token. Err: %w", err)
	}
	return signed, nil
}
