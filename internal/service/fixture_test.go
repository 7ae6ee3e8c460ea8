package service

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/authz"
	"github.com/Skotchmaster/retail_console/internal/credentials"
	"github.com/Skotchmaster/retail_console/internal/hash"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/otp"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/secret"
	"github.com/Skotchmaster/retail_console/internal/testutil"
	"github.com/Skotchmaster/retail_console/internal/tokens"
)

const (
	rootEmail    = "root@shop.test"
	testPassword = "correct-horse"
)

type outbox struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func (o *outbox) SendOTP(_ context.Context, email, code, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	if o.codes == nil {
		o.codes = map[string]string{}
	}
	o.codes[email] = code
	return nil
}

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

type fixture struct {
	repo    *repo.GormRepo
	mr      *miniredis.Miniredis
	pub     *testutil.Publisher
	outbox  *outbox
	secrets *secret.Provisioner
	tokens  *tokens.Issuer
	auth    *AuthService
	members *MemberService
	audit   *AuditService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	r := repo.New(testutil.NewDB(t))
	mr, c := testutil.NewRedis(t)
	pub := &testutil.Publisher{}
	box := &outbox{}
	evaluator := authz.NewEvaluator(rootEmail)

	secrets := secret.NewProvisioner(c, r, 0)
	issuer := tokens.NewIssuer(0, 0)
	audit := &AuditService{Store: r, Members: r, Authz: evaluator, Publisher: pub, Topic: "audit_events"}

	f := &fixture{
		repo:    r,
		mr:      mr,
		pub:     pub,
		outbox:  box,
		secrets: secrets,
		tokens:  issuer,
		audit:   audit,
	}
	f.auth = &AuthService{
		Sessions:    r,
		Members:     r,
		Credentials: credentials.NewVerifier(r),
		OTP:         otp.NewManager(c, box, 0, 3),
		Secrets:     secrets,
		Tokens:      issuer,
		Audit:       audit,
	}
	f.members = &MemberService{
		Members:      r,
		Sessions:     r,
		Images:       r,
		Cache:        c,
		Secrets:      secrets,
		Authz:        evaluator,
		Audit:        audit,
		RootPassword: testPassword,
	}
	return f
}

func (f *fixture) member(t *testing.T, email string, role models.Role, mutate ...func(*models.Member)) *models.Member {
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
	require.NoError(t, f.repo.CreateMember(context.Background(), m))
	return m
}

func inStore(store string) func(*models.Member) {
	return func(m *models.Member) { m.StoreID = strPtr(store) }
}

func withTwoFA(m *models.Member) { m.Is2FA = true }

func device(id string) DeviceMeta {
	return DeviceMeta{DeviceID: id, UA: "test-agent", IP: "10.0.0.1"}
}

func (f *fixture) signIn(t *testing.T, m *models.Member, deviceID string) *SessionResult {
	t.Helper()
	res, err := f.auth.SignInStep1(context.Background(), SignInInput{
		Email: m.Email, Password: testPassword, Role: m.RoleMember,
	}, device(deviceID))
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	return res.Session
}

func (f *fixture) sessionCount(t *testing.T, memberID string) int {
	t.Helper()
	var n int64
	err := f.repo.DB.Model(&models.DeviceSession{}).Where("member_id = ?", memberID).Count(&n).Error
	require.NoError(t, err)
	return int(n)
}

func repoAuditFilter(memberID string) repo.AuditFilter {
	return repo.AuditFilter{MemberID: memberID}
}
