package credentials

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/hash"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

type MemberFinder interface {
	FindByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Member, error)
}

type Verifier struct {
	Members MemberFinder
}

func NewVerifier(members MemberFinder) *Verifier {
	return &Verifier{Members: members}
}

// Authenticate checks email and password against the member registered under
// role. It never writes.
func (v *Verifier) Authenticate(ctx context.Context, email, password string, role models.Role, requireSecondFactor bool) (*models.Member, error) {
	l := logging.FromContext(ctx).With("svc", "credentials.authenticate", "role", role)

	m, err := v.Members.FindByEmailAndRole(ctx, email, role)
	if err != nil {
		return nil, err
	}

	ok, err := hash.CheckPassword(m.Password, m.Salt, password)
	if err != nil {
		l.Error("password_check_failed", "member_id", m.ID, "error", err)
		return nil, fmt.Errorf("check password: %w", err)
	}
	if !ok {
		l.Warn("authenticate_failed", "member_id", m.ID, "reason", "password mismatch")
		return nil, fmt.Errorf("password mismatch: %w", apperr.ErrUnauthorized)
	}

	if requireSecondFactor && !m.Is2FA {
		l.Warn("authenticate_failed", "member_id", m.ID, "reason", "second factor not enabled")
		return nil, fmt.Errorf("second factor not enabled: %w", apperr.ErrUnauthorized)
	}
	return m, nil
}
