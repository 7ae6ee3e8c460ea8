package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/models"
)

func (r *GormRepo) FindImageByLink(ctx context.Context, linkType models.LinkType, linkID string) (*models.Image, error) {
	var img models.Image
	err := r.DB.WithContext(ctx).
		Where("link_type = ? AND link_id = ?", linkType, linkID).
		Order("created_at DESC").
		First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("image for %s %s: %w", linkType, linkID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *GormRepo) FindImagesByLinks(ctx context.Context, linkType models.LinkType, linkIDs []string) ([]models.Image, error) {
	if len(linkIDs) == 0 {
		return nil, nil
	}
	var images []models.Image
	err := r.DB.WithContext(ctx).
		Where("link_type = ? AND link_id IN ?", linkType, linkIDs).
		Find(&images).Error
	return images, err
}

// ReplaceLinkedImage stores img as the only image of its link and returns the
// rows it replaced.
func (r *GormRepo) ReplaceLinkedImage(ctx context.Context, img *models.Image) ([]models.Image, error) {
	var old []models.Image
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_type = ? AND link_id = ?", img.LinkType, img.LinkID).Find(&old).Error; err != nil {
			return err
		}
		if len(old) > 0 {
			if err := tx.Where("link_type = ? AND link_id = ?", img.LinkType, img.LinkID).Delete(&models.Image{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(img).Error
	})
	if err != nil {
		return nil, err
	}
	return old, nil
}
