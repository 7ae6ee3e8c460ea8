package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/models"
)

// UpsertSession writes s as the only session of s.DeviceID, replacing any
// previous row for that device in a single statement.
func (r *GormRepo) UpsertSession(ctx context.Context, s *models.DeviceSession) error {
	s.ExpiredAt = s.ExpiredAt.UTC()
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"member_id", "name", "ua", "ip_address",
			"secret_key", "refresh_token", "expired_at", "updated_at",
		}),
	}).Omit("Member").Create(s).Error
}

func (r *GormRepo) FindSessionByDevice(ctx context.Context, deviceID string) (*models.DeviceSession, error) {
	var s models.DeviceSession
	err := r.DB.WithContext(ctx).Where("device_id = ?", deviceID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("device session %s: %w", deviceID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindSessionForRefresh looks a session up by its current refresh token and
// device; sessions of banned members are never returned.
func (r *GormRepo) FindSessionForRefresh(ctx context.Context, refreshToken, deviceID string) (*models.DeviceSession, error) {
	var s models.DeviceSession
	err := r.DB.WithContext(ctx).
		Joins("JOIN members ON members.id = device_sessions.member_id").
		Where("device_sessions.refresh_token = ? AND device_sessions.device_id = ?", refreshToken, deviceID).
		Where("members.is_banned = ?", false).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("refresh session: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// RotateSession swaps secret and refresh token only while the row still holds
// oldRefresh. A concurrent rotation makes this return ErrStaleRefreshToken.
func (r *GormRepo) RotateSession(ctx context.Context, id, oldRefresh, secret, newRefresh string, expiredAt time.Time) error {
	res := r.DB.WithContext(ctx).Model(&models.DeviceSession{}).
		Where("id = ? AND refresh_token = ?", id, oldRefresh).
		Updates(map[string]any{
			"secret_key":    secret,
			"refresh_token": newRefresh,
			"expired_at":    expiredAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRefreshToken
	}
	return nil
}

func (r *GormRepo) DeleteSession(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.DeviceSession{}).Error
}

func (r *GormRepo) DeleteSessionByMemberDevice(ctx context.Context, memberID, deviceID string) error {
	return r.DB.WithContext(ctx).
		Where("member_id = ? AND device_id = ?", memberID, deviceID).
		Delete(&models.DeviceSession{}).Error
}

// DeleteSessionsByMember removes every session of a member and returns the
// device ids that were signed out.
func (r *GormRepo) DeleteSessionsByMember(ctx context.Context, memberID string) ([]string, error) {
	var devices []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.DeviceSession{}).Where("member_id = ?", memberID).Pluck("device_id", &devices).Error; err != nil {
			return err
		}
		return tx.Where("member_id = ?", memberID).Delete(&models.DeviceSession{}).Error
	})
	return devices, err
}

// LiveSecret returns the signing secret of an unexpired session whose member
// matches role and is not banned.
func (r *GormRepo) LiveSecret(ctx context.Context, memberID, deviceID string, role models.Role) (string, bool, error) {
	var s models.DeviceSession
	err := r.DB.WithContext(ctx).
		Joins("JOIN members ON members.id = device_sessions.member_id").
		Where("device_sessions.member_id = ? AND device_sessions.device_id = ?", memberID, deviceID).
		Where("members.role_member = ? AND members.is_banned = ?", role, false).
		Where("device_sessions.expired_at > ?", time.Now().UTC()).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s.SecretKey, true, nil
}
