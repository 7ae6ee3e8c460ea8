package repo

import (
	"context"
	"time"

	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/pkg/pagination"
)

type AuditFilter struct {
	MemberID  string
	Status    models.AuditStatus
	Search    string
	Date      *time.Time
	SortBy    string
	SortOrder string
	Page      int
	Limit     int
}

var auditSortColumns = map[string]string{
	"createdAt": "created_at",
	"action":    "action",
	"status":    "status",
}

func (r *GormRepo) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	return r.DB.WithContext(ctx).Create(entry).Error
}

func (r *GormRepo) ListAuditLogs(ctx context.Context, f AuditFilter) ([]models.AuditLog, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.AuditLog{}).Where("member_id = ?", f.MemberID)

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(
			`(LOWER(action) LIKE ? ESCAPE '\' OR LOWER(context) LIKE ? ESCAPE '\')`,
			p, p,
		)
	}
	if f.Date != nil {
		start := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, time.UTC)
		q = q.Where("created_at >= ? AND created_at < ?", start, start.AddDate(0, 0, 1))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pagination.Calculate(f.Page, f.Limit)
	var logs []models.AuditLog
	err := q.Order(orderClause(f.SortBy, f.SortOrder, auditSortColumns, "created_at")).
		Offset(offset).Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
