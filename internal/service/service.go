package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/search"
)

type MemberStore interface {
	FindByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Member, error)
	FindByID(ctx context.Context, id string) (*models.Member, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Member, error)
	CountByEmail(ctx context.Context, email string) (int64, error)
	CountByEmailAndRole(ctx context.Context, email string, role models.Role) (int64, error)
	CreateMember(ctx context.Context, m *models.Member) error
	UpdateFields(ctx context.Context, id string, patch map[string]any) error
	SearchMembers(ctx context.Context, f repo.MemberFilter) ([]models.Member, int64, error)
}

type SessionStore interface {
	UpsertSession(ctx context.Context, s *models.DeviceSession) error
	FindSessionByDevice(ctx context.Context, deviceID string) (*models.DeviceSession, error)
	FindSessionForRefresh(ctx context.Context, refreshToken, deviceID string) (*models.DeviceSession, error)
	RotateSession(ctx context.Context, id, oldRefresh, secret, newRefresh string, expiredAt time.Time) error
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionByMemberDevice(ctx context.Context, memberID, deviceID string) error
	DeleteSessionsByMember(ctx context.Context, memberID string) ([]string, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, f repo.AuditFilter) ([]models.AuditLog, int64, error)
}

type ImageStore interface {
	FindImageByLink(ctx context.Context, linkType models.LinkType, linkID string) (*models.Image, error)
	FindImagesByLinks(ctx context.Context, linkType models.LinkType, linkIDs []string) ([]models.Image, error)
	ReplaceLinkedImage(ctx context.Context, img *models.Image) ([]models.Image, error)
}

// MemberIndex is the full-text side of member search.
type MemberIndex interface {
	Upsert(ctx context.Context, m *models.Member) error
	Search(ctx context.Context, q search.Query) (int64, []string, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validationError(msg string) error {
	return fmt.Errorf("%s: %w", msg, apperr.ErrValidation)
}

// collapseNotFound hides whether an account exists from sign-in callers.
func collapseNotFound(err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("%v: %w", err, apperr.ErrUnauthorized)
	}
	return err
}

func strPtr(s string) *string { return &s }

func actorID(m *models.Member) string {
	if m == nil {
		return ""
	}
	return m.ID
}

func setIf[T any](patch map[string]any, column string, v *T) {
	if v != nil {
		patch[column] = *v
	}
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
