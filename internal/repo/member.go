package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/pkg/pagination"
)

type MemberFilter struct {
	Search       string
	Role         models.Role
	IsBanned     *bool
	StoreID      string
	WorkBranchID string
	SortBy       string
	SortOrder    string
	Page         int
	Limit        int
}

var memberSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"fullName":  "full_name",
	"email":     "email",
}

func (r *GormRepo) FindByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Member, error) {
	var m models.Member
	err := r.DB.WithContext(ctx).Where("email = ? AND role_member = ?", email, role).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member %s: %w", email, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *GormRepo) FindByID(ctx context.Context, id string) (*models.Member, error) {
	var m models.Member
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("member %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *GormRepo) CountByEmail(ctx context.Context, email string) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Member{}).Where("email = ?", email).Count(&n).Error
	return n, err
}

func (r *GormRepo) CountByEmailAndRole(ctx context.Context, email string, role models.Role) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&models.Member{}).
		Where("email = ? AND role_member = ?", email, role).
		Count(&n).Error
	return n, err
}

func (r *GormRepo) CreateMember(ctx context.Context, m *models.Member) error {
	if err := r.DB.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("member %s: %w", m.Email, apperr.ErrConflict)
		}
		return err
	}
	return nil
}

// UpdateFields applies patch (column name to value) to one member.
func (r *GormRepo) UpdateFields(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	err := r.DB.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).Updates(patch).Error
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s: %w", id, apperr.ErrConflict)
	}
	return err
}

func (r *GormRepo) FindByIDs(ctx context.Context, ids []string) ([]models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var members []models.Member
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *GormRepo) SearchMembers(ctx context.Context, f MemberFilter) ([]models.Member, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Member{})

	if f.Search != "" {
		p := likePattern(f.Search)
		q = q.Where(
			`(LOWER(full_name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR LOWER(phone_number) LIKE ? ESCAPE '\')`,
			p, p, p,
		)
	}
	if f.Role != "" {
		q = q.Where("role_member = ?", f.Role)
	}
	if f.IsBanned != nil {
		q = q.Where("is_banned = ?", *f.IsBanned)
	}
	if f.StoreID != "" {
		q = q.Where("store_id = ?", f.StoreID)
	}
	if f.WorkBranchID != "" {
		q = q.Where("work_branch_id = ?", f.WorkBranchID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := pagination.Calculate(f.Page, f.Limit)
	var members []models.Member
	err := q.Order(orderClause(f.SortBy, f.SortOrder, memberSortColumns, "created_at")).
		Offset(offset).Limit(limit).
		Find(&members).Error
	if err != nil {
		return nil, 0, err
	}
	return members, total, nil
}
