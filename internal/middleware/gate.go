package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/metrics"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/tokens"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

const (
	MemberKey = "member"
	ClaimsKey = "claims"
)

type SecretResolver interface {
	Resolve(ctx context.Context, memberID, deviceID string, role models.Role) (string, bool, error)
}

type TokenVerifier interface {
	Verify(token, secret string) (*tokens.AccessClaims, error)
}

type MemberLoader interface {
	FindOneByID(ctx context.Context, id string) (*models.Member, error)
}

// Gate authenticates bearer requests against the signing secret of the
// device session named in the token.
type Gate struct {
	Secrets SecretResolver
	Tokens  TokenVerifier
	Members MemberLoader
	Metrics *metrics.Metrics
}

func NewGate(secrets SecretResolver, verifier TokenVerifier, members MemberLoader, m *metrics.Metrics) *Gate {
	return &Gate{Secrets: secrets, Tokens: verifier, Members: members, Metrics: m}
}

func (g *Gate) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		member, claims, err := g.Authenticate(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, apperr.Message(err))
		}
		c.Set(MemberKey, member)
		c.Set(ClaimsKey, claims)
		return next(c)
	}
}

// Authenticate runs every check of the gate and returns the caller. Every
// failure wraps apperr.ErrUnauthenticated.
func (g *Gate) Authenticate(c echo.Context) (*models.Member, *tokens.AccessClaims, error) {
	req := c.Request()
	ctx := req.Context()
	l := logging.FromContext(ctx).With("handler", "gate")

	reject := func(stage string, cause error) (*models.Member, *tokens.AccessClaims, error) {
		g.Metrics.GateRejected(stage)
		if cause != nil {
			l.Warn("request_rejected", "stage", stage, "error", cause)
		} else {
			l.Warn("request_rejected", "stage", stage)
		}
		return nil, nil, apperr.ErrUnauthenticated
	}

	raw, ok := bearerToken(req)
	if !ok {
		return reject("bearer", nil)
	}

	decoded, err := tokens.Decode(raw)
	if err != nil {
		return reject("decode", err)
	}
	if decoded.MemberID == "" || decoded.DeviceID == "" {
		return reject("decode", tokens.ErrMissingDevice)
	}

	secret, ok, err := g.Secrets.Resolve(ctx, decoded.MemberID, decoded.DeviceID, decoded.RoleMember)
	if err != nil {
		return reject("secret", err)
	}
	if !ok {
		return reject("secret", nil)
	}

	claims, err := g.Tokens.Verify(raw, secret)
	if err != nil {
		return reject("verify", err)
	}

	if Fingerprint(req) != claims.DeviceID {
		return reject("fingerprint", nil)
	}

	member, err := g.Members.FindOneByID(ctx, claims.MemberID)
	if err != nil {
		return reject("member", err)
	}
	if member.IsBanned {
		return reject("member", errors.New("member is banned"))
	}
	if member.RoleMember != claims.RoleMember {
		return reject("member", errors.New("role changed since the token was issued"))
	}
	return member, claims, nil
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentMember returns the member attached by RequireAuth.
func CurrentMember(c echo.Context) (*models.Member, bool) {
	m, ok := c.Get(MemberKey).(*models.Member)
	return m, ok && m != nil
}

func CurrentClaims(c echo.Context) (*tokens.AccessClaims, bool) {
	cl, ok := c.Get(ClaimsKey).(*tokens.AccessClaims)
	return cl, ok && cl != nil
}

// RequireRole must run after RequireAuth.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := CurrentClaims(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, apperr.Message(apperr.ErrUnauthenticated))
			}
			if _, ok := allowed[claims.RoleMember]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}
			return next(c)
		}
	}
}
