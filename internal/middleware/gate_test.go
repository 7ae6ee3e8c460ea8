package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/secret"
	"github.com/Skotchmaster/retail_console/internal/testutil"
	"github.com/Skotchmaster/retail_console/internal/tokens"
)

type noSessions struct{}

func (noSessions) LiveSecret(context.Context, string, string, models.Role) (string, bool, error) {
	return "", false, nil
}

type memberMap map[string]*models.Member

func (m memberMap) FindOneByID(_ context.Context, id string) (*models.Member, error) {
	if mem, ok := m[id]; ok {
		cp := *mem
		return &cp, nil
	}
	return nil, apperr.ErrNotFound
}

type gateFixture struct {
	gate    *Gate
	secrets *secret.Provisioner
	issuer  *tokens.Issuer
	members memberMap
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	_, c := testutil.NewRedis(t)
	secrets := secret.NewProvisioner(c, noSessions{}, 0)
	issuer := tokens.NewIssuer(0, 0)
	members := memberMap{
		"m-1": {ID: "m-1", Email: "owner@shop.test", RoleMember: models.RoleOwner},
	}
	return &gateFixture{
		gate:    NewGate(secrets, issuer, members, nil),
		secrets: secrets,
		issuer:  issuer,
		members: members,
	}
}

func (f *gateFixture) token(t *testing.T, memberID, deviceID string, role models.Role) string {
	t.Helper()
	s, err := f.secrets.Issue(context.Background(), memberID, deviceID)
	require.NoError(t, err)
	tok, _, err := f.issuer.IssueAccessToken(tokens.Identity{MemberID: memberID, Role: role, DeviceID: deviceID}, s)
	require.NoError(t, err)
	return tok
}

func serveGate(g *Gate, req *http.Request) (*httptest.ResponseRecorder, *models.Member, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	var seen *models.Member
	h := g.RequireAuth(func(c echo.Context) error {
		seen, _ = CurrentMember(c)
		return c.NoContent(http.StatusOK)
	})
	err := h(c)
	return rec, seen, err
}

func authedRequest(token, fingerprint string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/members/profile", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if fingerprint != "" {
		req.Header.Set(FingerprintHeader, fingerprint)
	}
	return req
}

func TestGate_AcceptsLiveSession(t *testing.T) {
	t.Parallel()
	f := newGateFixture(t)
	tok := f.token(t, "m-1", "dev-1", models.RoleOwner)

	rec, seen, err := serveGate(f.gate, authedRequest(tok, "dev-1"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "m-1", seen.ID)
}

func TestGate_Rejections(t *testing.T) {
	t.Parallel()
	f := newGateFixture(t)
	f.members["banned"] = &models.Member{ID: "banned", RoleMember: models.RoleUser, IsBanned: true}
	f.members["promoted"] = &models.Member{ID: "promoted", RoleMember: models.RoleAdmin}

	good := f.token(t, "m-1", "dev-1", models.RoleOwner)

	noDevice, _, err := f.issuer.IssueAccessToken(tokens.Identity{MemberID: "m-1", Role: models.RoleOwner}, "whatever-secret")
	require.NoError(t, err)

	forged, _, err := f.issuer.IssueAccessToken(tokens.Identity{MemberID: "m-1", Role: models.RoleOwner, DeviceID: "dev-1"}, "not-the-secret")
	require.NoError(t, err)

	unknownDevice, _, err := f.issuer.IssueAccessToken(tokens.Identity{MemberID: "m-1", Role: models.RoleOwner, DeviceID: "dev-x"}, "anything")
	require.NoError(t, err)

	past := tokens.NewIssuer(time.Minute, 0)
	past.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	s, err := f.secrets.Issue(context.Background(), "m-1", "dev-old")
	require.NoError(t, err)
	expired, _, err := past.IssueAccessToken(tokens.Identity{MemberID: "m-1", Role: models.RoleOwner, DeviceID: "dev-old"}, s)
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"missing header", authedRequest("", "dev-1")},
		{"garbage token", authedRequest("not.a.jwt", "dev-1")},
		{"no device claim", authedRequest(noDevice, "dev-1")},
		{"no session for device", authedRequest(unknownDevice, "dev-x")},
		{"wrong signing secret", authedRequest(forged, "dev-1")},
		{"expired", authedRequest(expired, "dev-old")},
		{"fingerprint mismatch", authedRequest(good, "dev-2")},
		{"banned member", authedRequest(f.token(t, "banned", "dev-b", models.RoleUser), "dev-b")},
		{"role changed", authedRequest(f.token(t, "promoted", "dev-p", models.RoleOwner), "dev-p")},
		{"unknown member", authedRequest(f.token(t, "ghost", "dev-g", models.RoleUser), "dev-g")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, seen, err := serveGate(f.gate, tt.req)
			require.Error(t, err)
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, http.StatusUnauthorized, he.Code)
			assert.Nil(t, seen)
		})
	}
}

func TestGate_WrongScheme(t *testing.T) {
	t.Parallel()
	f := newGateFixture(t)
	tok := f.token(t, "m-1", "dev-1", models.RoleOwner)

	req := authedRequest("", "dev-1")
	req.Header.Set(echo.HeaderAuthorization, "Basic "+tok)
	_, _, err := serveGate(f.gate, req)
	require.Error(t, err)
}

func TestGate_EvictedSecretRejects(t *testing.T) {
	t.Parallel()
	f := newGateFixture(t)
	tok := f.token(t, "m-1", "dev-1", models.RoleOwner)
	require.NoError(t, f.secrets.Evict(context.Background(), "m-1", "dev-1"))

	_, _, err := serveGate(f.gate, authedRequest(tok, "dev-1"))
	require.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		claims *tokens.AccessClaims
		want   int
	}{
		{"allowed", &tokens.AccessClaims{RoleMember: models.RoleAdmin}, http.StatusOK},
		{"other role", &tokens.AccessClaims{RoleMember: models.RoleUser}, http.StatusForbidden},
		{"no claims", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPatch, "/members/ban", nil), rec)
			if tt.claims != nil {
				c.Set(ClaimsKey, tt.claims)
			}
			err := RequireRole(models.RoleAdmin)(func(c echo.Context) error {
				return c.NoContent(http.StatusOK)
			})(c)
			if tt.want == http.StatusOK {
				require.NoError(t, err)
				assert.Equal(t, http.StatusOK, rec.Code)
				return
			}
			he, ok := err.(*echo.HTTPError)
			require.True(t, ok)
			assert.Equal(t, tt.want, he.Code)
		})
	}
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := httptest.NewRequest(http.MethodGet, "/", nil)
	a.Header.Set("User-Agent", "ua-1")
	a.Header.Set("Accept-Language", "vi")
	b := httptest.NewRequest(http.MethodGet, "/", nil)
	b.Header.Set("User-Agent", "ua-1")
	b.Header.Set("Accept-Language", "vi")
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Len(t, Fingerprint(a), 64)

	b.Header.Set("User-Agent", "ua-2")
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	b.Header.Set(FingerprintHeader, " device-7 ")
	assert.Equal(t, "device-7", Fingerprint(b))
}
