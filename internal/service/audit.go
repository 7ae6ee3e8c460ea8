package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/authz"
	"github.com/Skotchmaster/retail_console/internal/events"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/pkg/logging"
	"github.com/Skotchmaster/retail_console/pkg/pagination"
)

type AuditEntry struct {
	MemberID string
	Action   string
	Context  string
	Status   models.AuditStatus
	Details  map[string]any
}

type AuditService struct {
	Store     AuditStore
	Members   MemberStore
	Authz     *authz.Evaluator
	Publisher events.Publisher
	Topic     string
}

// Record stores entry and mirrors it to the audit topic. Failures are logged
// and never reach the caller's operation.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) {
	l := logging.FromContext(ctx).With("svc", "audit.record", "action", entry.Action)

	row := &models.AuditLog{
		ID:       ulid.Make().String(),
		MemberID: entry.MemberID,
		Action:   entry.Action,
		Context:  entry.Context,
		Status:   entry.Status,
		Details:  entry.Details,
	}
	if err := s.Store.CreateAuditLog(ctx, row); err != nil {
		l.Error("audit_write_failed", "member_id", entry.MemberID, "error", err)
		return
	}
	if s.Publisher == nil || s.Topic == "" {
		return
	}
	if err := s.Publisher.PublishEvent(ctx, s.Topic, row.MemberID, row); err != nil {
		l.Warn("audit_publish_failed", "member_id", entry.MemberID, "error", err)
	}
}

// ListByMember pages through the audit trail of f.MemberID (the actor when
// empty). Reading someone else's trail needs higher privilege over them.
func (s *AuditService) ListByMember(ctx context.Context, actor *models.Member, f repo.AuditFilter) (pagination.Page[models.AuditLog], error) {
	l := logging.FromContext(ctx).With("svc", "audit.list")

	if actor == nil {
		return pagination.Page[models.AuditLog]{}, apperr.ErrUnauthenticated
	}
	if f.MemberID == "" {
		f.MemberID = actor.ID
	}
	if f.Status != "" && f.Status != models.AuditSuccess && f.Status != models.AuditFailure {
		return pagination.Page[models.AuditLog]{}, validationError("status must be SUCCESS or FAILURE")
	}

	if f.MemberID != actor.ID {
		target, err := s.Members.FindByID(ctx, f.MemberID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			l.Error("audit_list_failed", "status", 500, "error", err)
			return pagination.Page[models.AuditLog]{}, err
		}
		if !s.Authz.HasHigherPrivilegeThan(actor, target) {
			l.Warn("audit_list_denied", "status", 403, "actor_id", actor.ID, "target_id", f.MemberID)
			return pagination.Page[models.AuditLog]{}, fmt.Errorf("read logs of %s: %w", f.MemberID, apperr.ErrForbidden)
		}
	}

	logs, total, err := s.Store.ListAuditLogs(ctx, f)
	if err != nil {
		l.Error("audit_list_failed", "status", 500, "error", err)
		return pagination.Page[models.AuditLog]{}, err
	}
	return pagination.NewPage(logs, f.Page, f.Limit, total), nil
}
