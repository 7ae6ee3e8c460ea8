package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/credentials"
	"github.com/Skotchmaster/retail_console/internal/metrics"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/otp"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/secret"
	"github.com/Skotchmaster/retail_console/internal/tokens"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

const ChallengeIssuedMessage = "a verification code has been sent to your email"

type AuthService struct {
	Sessions    SessionStore
	Members     MemberStore
	Credentials *credentials.Verifier
	OTP         *otp.Manager
	Secrets     *secret.Provisioner
	Tokens      *tokens.Issuer
	Audit       *AuditService
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

type SignInInput struct {
	Email    string
	Password string
	Role     models.Role
	OTP      string
}

// DeviceMeta describes the client a session is bound to. DeviceID is the
// request fingerprint.
type DeviceMeta struct {
	DeviceID string
	Name     string
	UA       string
	IP       string
}

type SessionResult struct {
	Token          string
	TokenExpiresAt time.Time
	RefreshToken   string
	ExpiredAt      time.Time
	Member         models.Member
}

// SignInResult holds either Message (a code was sent) or Session.
type SignInResult struct {
	Message string
	Session *SessionResult
}

func (s *AuthService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AuthService) validate(in SignInInput, meta DeviceMeta) (string, error) {
	email := normalizeEmail(in.Email)
	switch {
	case email == "":
		return "", validationError("email is required")
	case in.Password == "":
		return "", validationError("password is required")
	case !in.Role.Valid():
		return "", validationError("roleMember is invalid")
	case meta.DeviceID == "":
		return "", validationError("device fingerprint is required")
	}
	return email, nil
}

func (s *AuthService) SignInStep1(ctx context.Context, in SignInInput, meta DeviceMeta) (res *SignInResult, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.sign_in_step1", "role", in.Role)
	defer func() { s.Metrics.AuthEvent("sign_in_step1", err) }()

	email, err := s.validate(in, meta)
	if err != nil {
		return nil, err
	}

	m, err := s.Credentials.Authenticate(ctx, email, in.Password, in.Role, false)
	if err != nil {
		l.Warn("sign_in_failed", "status", apperr.Status(collapseNotFound(err)), "error", err)
		return nil, collapseNotFound(err)
	}
	if m.IsBanned {
		l.Warn("sign_in_failed", "status", 401, "member_id", m.ID, "reason", "member is banned")
		return nil, fmt.Errorf("member %s is banned: %w", m.ID, apperr.ErrUnauthorized)
	}

	if m.Is2FA {
		ch, err := s.OTP.Issue(ctx, email, m.FullName)
		if err != nil {
			l.Error("otp_issue_failed", "status", 500, "member_id", m.ID, "error", err)
			return nil, err
		}
		if !ch.Delivered() {
			l.Warn("otp_delivery_failed", "status", 502, "member_id", m.ID, "error", ch.DeliveryErr)
			return nil, fmt.Errorf("send otp: %v: %w", ch.DeliveryErr, apperr.ErrDelivery)
		}
		l.Info("otp_issued", "member_id", m.ID)
		return &SignInResult{Message: ChallengeIssuedMessage}, nil
	}

	sess, err := s.establishSession(ctx, m, meta)
	if err != nil {
		l.Error("sign_in_failed", "status", 500, "member_id", m.ID, "error", err)
		return nil, err
	}
	s.recordSignIn(ctx, m, meta, "SIGN_IN")
	return &SignInResult{Session: sess}, nil
}

func (s *AuthService) SignInStep2(ctx context.Context, in SignInInput, meta DeviceMeta) (res *SessionResult, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.sign_in_step2", "role", in.Role)
	defer func() { s.Metrics.AuthEvent("sign_in_step2", err) }()

	email, err := s.validate(in, meta)
	if err != nil {
		return nil, err
	}
	if in.OTP == "" {
		return nil, validationError("otp is required")
	}

	ok, err := s.OTP.Verify(ctx, email, in.OTP)
	if err != nil {
		l.Error("otp_verify_failed", "status", 500, "error", err)
		return nil, err
	}
	if !ok {
		l.Warn("sign_in_failed", "status", 401, "reason", "otp mismatch")
		return nil, fmt.Errorf("otp mismatch: %w", apperr.ErrUnauthorized)
	}

	m, err := s.Credentials.Authenticate(ctx, email, in.Password, in.Role, true)
	if err != nil {
		l.Warn("sign_in_failed", "status", apperr.Status(collapseNotFound(err)), "error", err)
		return nil, collapseNotFound(err)
	}
	if m.IsBanned {
		l.Warn("sign_in_failed", "status", 401, "member_id", m.ID, "reason", "member is banned")
		return nil, fmt.Errorf("member %s is banned: %w", m.ID, apperr.ErrUnauthorized)
	}

	consumed, err := s.OTP.Consume(ctx, email, in.OTP)
	if err != nil {
		l.Error("otp_consume_failed", "status", 500, "member_id", m.ID, "error", err)
		return nil, err
	}
	if !consumed {
		l.Warn("sign_in_failed", "status", 401, "member_id", m.ID, "reason", "otp already used")
		return nil, fmt.Errorf("otp already used: %w", apperr.ErrUnauthorized)
	}

	sess, err := s.establishSession(ctx, m, meta)
	if err != nil {
		l.Error("sign_in_failed", "status", 500, "member_id", m.ID, "error", err)
		return nil, err
	}
	s.recordSignIn(ctx, m, meta, "SIGN_IN_2FA")
	return sess, nil
}

func identityFor(m *models.Member, deviceID string) tokens.Identity {
	id := tokens.Identity{MemberID: m.ID, Role: m.RoleMember, DeviceID: deviceID}
	switch {
	case m.RoleMember == models.RoleOwner && m.StoreID != nil:
		id.StoreID = *m.StoreID
	case m.RoleMember == models.RoleEmployee && m.WorkBranchID != nil:
		id.WorkBranchID = *m.WorkBranchID
	}
	return id
}

// establishSession mints a secret and both tokens, then replaces whatever
// session the device had. The row is the only copy of the secret written
// here; the cache entry is dropped and refilled from the row on next use.
func (s *AuthService) establishSession(ctx context.Context, m *models.Member, meta DeviceMeta) (*SessionResult, error) {
	sk, err := s.Secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	token, tokenExp, err := s.Tokens.IssueAccessToken(identityFor(m, meta.DeviceID), sk)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.Tokens.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	name := meta.Name
	if name == "" {
		name = meta.DeviceID
	}
	row := &models.DeviceSession{
		ID:           uuid.NewString(),
		DeviceID:     meta.DeviceID,
		Name:         name,
		UA:           meta.UA,
		IPAddress:    meta.IP,
		SecretKey:    sk,
		RefreshToken: refresh,
		ExpiredAt:    refreshExp,
		MemberID:     m.ID,
	}
	prev, err := s.Sessions.FindSessionByDevice(ctx, meta.DeviceID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("load device session: %w", err)
	}
	if err := s.Sessions.UpsertSession(ctx, row); err != nil {
		return nil, fmt.Errorf("save device session: %w", err)
	}
	if prev != nil && prev.MemberID != m.ID {
		if err := s.Secrets.Evict(ctx, prev.MemberID, meta.DeviceID); err != nil {
			logging.FromContext(ctx).Warn("secret_evict_failed", "member_id", prev.MemberID, "error", err)
		}
	}
	if err := s.Secrets.Evict(ctx, m.ID, meta.DeviceID); err != nil {
		logging.FromContext(ctx).Warn("secret_evict_failed", "member_id", m.ID, "error", err)
	}

	return &SessionResult{
		Token:          token,
		TokenExpiresAt: tokenExp,
		RefreshToken:   refresh,
		ExpiredAt:      refreshExp,
		Member:         m.Sanitized(),
	}, nil
}

// RefreshToken rotates the session of deviceID. Only one of several
// concurrent refreshes with the same token succeeds.
func (s *AuthService) RefreshToken(ctx context.Context, deviceID, refreshToken string) (res *SessionResult, err error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")
	defer func() { s.Metrics.AuthEvent("refresh", err) }()

	if deviceID == "" || refreshToken == "" {
		l.Warn("refresh_failed", "status", 401, "reason", "missing refresh token or device")
		return nil, fmt.Errorf("missing refresh token: %w", apperr.ErrUnauthorized)
	}

	sess, err := s.Sessions.FindSessionForRefresh(ctx, refreshToken, deviceID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			l.Warn("refresh_failed", "status", 401, "reason", "unknown refresh token")
		} else {
			l.Error("refresh_failed", "status", 500, "error", err)
		}
		return nil, collapseNotFound(err)
	}

	if !sess.ExpiredAt.After(s.now()) {
		if err := s.Sessions.DeleteSession(ctx, sess.ID); err != nil {
			l.Error("expired_session_delete_failed", "session_id", sess.ID, "error", err)
		}
		if err := s.Secrets.Evict(ctx, sess.MemberID, deviceID); err != nil {
			l.Warn("secret_evict_failed", "member_id", sess.MemberID, "error", err)
		}
		l.Warn("refresh_failed", "status", 401, "member_id", sess.MemberID, "reason", "refresh token expired")
		return nil, fmt.Errorf("refresh token expired: %w", apperr.ErrUnauthorized)
	}

	m, err := s.Members.FindByID(ctx, sess.MemberID)
	if err != nil {
		l.Error("refresh_failed", "status", 500, "member_id", sess.MemberID, "error", err)
		return nil, collapseNotFound(err)
	}

	sk, err := s.Secrets.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	token, tokenExp, err := s.Tokens.IssueAccessToken(identityFor(m, deviceID), sk)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	next, nextExp, err := s.Tokens.IssueRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.Sessions.RotateSession(ctx, sess.ID, refreshToken, sk, next, nextExp); err != nil {
		if errors.Is(err, repo.ErrStaleRefreshToken) {
			l.Warn("refresh_failed", "status", 401, "member_id", m.ID, "reason", "refresh token already rotated")
			return nil, fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
		}
		l.Error("refresh_failed", "status", 500, "member_id", m.ID, "error", err)
		return nil, err
	}
	if err := s.Secrets.Evict(ctx, m.ID, deviceID); err != nil {
		l.Warn("secret_evict_failed", "member_id", m.ID, "error", err)
	}

	l.Info("token_refreshed", "member_id", m.ID)
	return &SessionResult{
		Token:          token,
		TokenExpiresAt: tokenExp,
		RefreshToken:   next,
		ExpiredAt:      nextExp,
		Member:         m.Sanitized(),
	}, nil
}

// SignOut ends the session of one device. Signing out twice is not an error.
func (s *AuthService) SignOut(ctx context.Context, memberID, deviceID string) (err error) {
	l := logging.FromContext(ctx).With("svc", "auth.sign_out", "member_id", memberID)
	defer func() { s.Metrics.AuthEvent("sign_out", err) }()

	if err := s.Sessions.DeleteSessionByMemberDevice(ctx, memberID, deviceID); err != nil {
		l.Error("sign_out_failed", "status", 500, "error", err)
		return err
	}
	if err := s.Secrets.Evict(ctx, memberID, deviceID); err != nil {
		l.Error("sign_out_failed", "status", 500, "reason", "secret eviction", "error", err)
		return err
	}
	l.Info("signed_out")
	return nil
}

func (s *AuthService) recordSignIn(ctx context.Context, m *models.Member, meta DeviceMeta, action string) {
	if s.Audit == nil {
		return
	}
	s.Audit.Record(ctx, AuditEntry{
		MemberID: m.ID,
		Action:   action,
		Context:  "auth",
		Status:   models.AuditSuccess,
		Details:  map[string]any{"deviceId": meta.DeviceID, "ip": meta.IP},
	})
}
