package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/authz"
	"github.com/Skotchmaster/retail_console/internal/credentials"
	"github.com/Skotchmaster/retail_console/internal/hash"
	"github.com/Skotchmaster/retail_console/internal/metrics"
	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/notify"
	"github.com/Skotchmaster/retail_console/internal/otp"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/secret"
	"github.com/Skotchmaster/retail_console/internal/service"
	"github.com/Skotchmaster/retail_console/internal/storage"
	"github.com/Skotchmaster/retail_console/internal/testutil"
	"github.com/Skotchmaster/retail_console/internal/tokens"
)

const (
	rootEmail    = "root@shop.test"
	testPassword = "correct-horse"
)

type server struct {
	e       *echo.Echo
	repo    *repo.GormRepo
	pub     *testutil.Publisher
	metrics *metrics.Metrics
}

func newServer(t *testing.T, opts ...func(*Deps)) *server {
	t.Helper()
	gdb := testutil.NewDB(t)
	r := repo.New(gdb)
	_, c := testutil.NewRedis(t)
	pub := &testutil.Publisher{}
	m := metrics.New()

	evaluator := authz.NewEvaluator(rootEmail)
	secrets := secret.NewProvisioner(c, r, 0)
	issuer := tokens.NewIssuer(0, 0)
	audit := &service.AuditService{Store: r, Members: r, Authz: evaluator, Publisher: pub, Topic: "audit_events"}
	auth := &service.AuthService{
		Sessions:    r,
		Members:     r,
		Credentials: credentials.NewVerifier(r),
		OTP:         otp.NewManager(c, notify.NewQueue(pub, "notification_events"), 0, 3),
		Secrets:     secrets,
		Tokens:      issuer,
		Audit:       audit,
		Metrics:     m,
	}
	members := &service.MemberService{
		Members:      r,
		Sessions:     r,
		Images:       r,
		Cache:        c,
		Secrets:      secrets,
		Authz:        evaluator,
		Audit:        audit,
		RootPassword: testPassword,
	}
	blobs, err := storage.NewFS(t.TempDir(), "/images")
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)

	d := &Deps{
		Auth:    &AuthHTTP{Svc: auth},
		Members: &MembersHTTP{Svc: members},
		Logs:    &LogsHTTP{Svc: audit},
		Images:  &ImagesHTTP{Svc: &service.ImageService{Blobs: blobs, Images: r, Cache: c}},
		Gate:    middleware.NewGate(secrets, issuer, members, m),
		Metrics: m,
		DB:      sqlDB,
	}
	for _, o := range opts {
		o(d)
	}

	e := echo.New()
	e.Use(m.Instrument())
	Register(e, d)
	return &server{e: e, repo: r, pub: pub, metrics: m}
}

func (s *server) member(t *testing.T, email string, role models.Role, mutate ...func(*models.Member)) *models.Member {
	t.Helper()
	pw, salt, err := hash.NewCredentials(testPassword)
	require.NoError(t, err)
	m := &models.Member{
		ID:         uuid.NewString(),
		Email:      email,
		Password:   pw,
		Salt:       salt,
		FullName:   "Member " + email,
		RoleMember: role,
	}
	for _, fn := range mutate {
		fn(m)
	}
	require.NoError(t, s.repo.CreateMember(context.Background(), m))
	return m
}

type call struct {
	method  string
	path    string
	body    any
	token   string
	device  string
	ip      string
	cookies []*http.Cookie
	header  map[string]string
}

func (s *server) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(c.body))
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	if c.body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if c.token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+c.token)
	}
	if c.device != "" {
		req.Header.Set(middleware.FingerprintHeader, c.device)
	}
	if c.ip != "" {
		req.RemoteAddr = c.ip + ":4321"
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

type session struct {
	Token   string
	Refresh *http.Cookie
	Member  models.Member
}

func refreshCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == RefreshCookieName {
			return ck
		}
	}
	return nil
}

func (s *server) signIn(t *testing.T, m *models.Member, deviceID, ip string) session {
	t.Helper()
	rec := s.do(t, call{
		method: http.MethodPost,
		path:   "/members/sign-in/step-1",
		body:   map[string]any{"email": m.Email, "password": testPassword, "roleMember": m.RoleMember},
		device: deviceID,
		ip:     ip,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Token  string        `json:"token"`
		Member models.Member `json:"member"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	ck := refreshCookie(rec)
	require.NotNil(t, ck)
	return session{Token: body.Token, Refresh: ck, Member: body.Member}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}
