package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/random"
)

const (
	DefaultAccessTTL   = 6 * time.Hour
	DefaultRefreshTTL  = 24 * time.Hour
	RefreshTokenLength = 64
)

var (
	ErrMalformed     = errors.New("malformed token")
	ErrInvalidToken  = errors.New("invalid token")
	ErrEmptySecret   = errors.New("empty signing secret")
	ErrMissingDevice = errors.New("token has no device id")
)

// Identity is the claim set carried by an access token.
type Identity struct {
	MemberID     string
	Role         models.Role
	DeviceID     string
	StoreID      string
	WorkBranchID string
}

type AccessClaims struct {
	MemberID     string      `json:"id"`
	RoleMember   models.Role `json:"roleMember"`
	DeviceID     string      `json:"deviceId"`
	StoreID      string      `json:"storeId,omitempty"`
	WorkBranchID string      `json:"workBranchId,omitempty"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) Identity() Identity {
	return Identity{
		MemberID:     c.MemberID,
		Role:         c.RoleMember,
		DeviceID:     c.DeviceID,
		StoreID:      c.StoreID,
		WorkBranchID: c.WorkBranchID,
	}
}

type Issuer struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewIssuer(accessTTL, refreshTTL time.Duration) *Issuer {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTTL
	}
	return &Issuer{AccessTTL: accessTTL, RefreshTTL: refreshTTL, Now: time.Now}
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

func (i *Issuer) IssueAccessToken(id Identity, secret string) (string, time.Time, error) {
	if secret == "" {
		return "", time.Time{}, ErrEmptySecret
	}
	now := i.now()
	exp := now.Add(i.AccessTTL)
	claims := AccessClaims{
		MemberID:     id.MemberID,
		RoleMember:   id.Role,
		DeviceID:     id.DeviceID,
		StoreID:      id.StoreID,
		WorkBranchID: id.WorkBranchID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, exp, nil
}

func (i *Issuer) IssueRefreshToken() (string, time.Time, error) {
	token, err := random.String(RefreshTokenLength, random.Alphanumeric)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, i.now().Add(i.RefreshTTL), nil
}

// Decode reads the claims without checking the signature. The result must
// only be used to pick the key for Verify.
func Decode(token string) (*AccessClaims, error) {
	var claims AccessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &claims, nil
}

func (i *Issuer) Verify(token, secret string) (*AccessClaims, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	var claims AccessClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	tkn, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
