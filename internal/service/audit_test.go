package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/repo"
)

func TestAuditRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.audit.Record(ctx, AuditEntry{MemberID: "m1", Action: "BAN_MEMBER", Context: "members", Status: models.AuditSuccess, Details: map[string]any{"targetId": "m2"}})

	logs, total, err := f.repo.ListAuditLogs(ctx, repo.AuditFilter{MemberID: "m1"})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Len(t, logs[0].ID, 26)
	assert.Equal(t, "m2", logs[0].Details["targetId"])

	events := f.pub.Events("audit_events")
	require.Len(t, events, 1)
	assert.Equal(t, "m1", events[0].Key)
	assert.Equal(t, "BAN_MEMBER", events[0].Body["action"])

	f.pub.Err = errors.New("broker down")
	f.audit.Record(ctx, AuditEntry{MemberID: "m1", Action: "UPDATE_ROLE", Status: models.AuditFailure})
	_, total, err = f.repo.ListAuditLogs(ctx, repo.AuditFilter{MemberID: "m1"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total, "publish failures do not lose the row")
}

func TestAuditListByMember(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	admin := f.member(t, "admin@shop.test", models.RoleAdmin)
	owner := f.member(t, "owner@shop.test", models.RoleOwner)
	other := f.member(t, "other@shop.test", models.RoleOwner)

	for i := 0; i < 3; i++ {
		f.audit.Record(ctx, AuditEntry{MemberID: owner.ID, Action: "SIGN_IN", Context: "auth", Status: models.AuditSuccess})
	}
	f.audit.Record(ctx, AuditEntry{MemberID: owner.ID, Action: "BAN_MEMBER", Context: "members", Status: models.AuditFailure})

	page, err := f.audit.ListByMember(ctx, owner, repo.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, page.Total)
	assert.Len(t, page.Data, 2)
	assert.Equal(t, 2, page.TotalPages)

	page, err = f.audit.ListByMember(ctx, admin, repo.AuditFilter{MemberID: owner.ID, Status: models.AuditFailure})
	require.NoError(t, err)
	assert.EqualValues(t, 1, page.Total)

	_, err = f.audit.ListByMember(ctx, other, repo.AuditFilter{MemberID: owner.ID})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.audit.ListByMember(ctx, admin, repo.AuditFilter{MemberID: "ghost"})
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.audit.ListByMember(ctx, owner, repo.AuditFilter{Status: "MAYBE"})
	require.ErrorIs(t, err, apperr.ErrValidation)
}
