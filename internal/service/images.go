package service

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/storage"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

const MaxAvatarSize = 5 << 20

type ImageService struct {
	Blobs  storage.Store
	Images ImageStore
	Cache  cache.Store
}

// UploadAvatar stores the blob and makes it the member's only avatar.
func (s *ImageService) UploadAvatar(ctx context.Context, memberID, filename, contentType string, size int64, r io.Reader) (*models.Image, error) {
	l := logging.FromContext(ctx).With("svc", "images.upload_avatar", "member_id", memberID)

	if !strings.HasPrefix(contentType, "image/") {
		return nil, validationError("file must be an image")
	}
	if size <= 0 || size > MaxAvatarSize {
		return nil, validationError(fmt.Sprintf("file size must be between 1 and %d bytes", MaxAvatarSize))
	}

	id := uuid.NewString()
	name := path.Join("members", memberID, id+strings.ToLower(path.Ext(filename)))
	if err := s.Blobs.Put(ctx, name, contentType, io.LimitReader(r, size), size); err != nil {
		l.Error("avatar_upload_failed", "status", 500, "error", err)
		return nil, fmt.Errorf("store avatar: %w", err)
	}

	img := &models.Image{
		ID:       id,
		Filename: path.Base(name),
		Path:     name,
		URL:      s.Blobs.URL(name),
		MimeType: contentType,
		Size:     size,
		LinkType: models.LinkTypeMember,
		LinkID:   memberID,
	}
	replaced, err := s.Images.ReplaceLinkedImage(ctx, img)
	if err != nil {
		l.Error("avatar_upload_failed", "status", 500, "error", err)
		if delErr := s.Blobs.Delete(ctx, name); delErr != nil {
			l.Warn("avatar_cleanup_failed", "path", name, "error", delErr)
		}
		return nil, err
	}
	for _, old := range replaced {
		if err := s.Blobs.Delete(ctx, old.Path); err != nil {
			l.Warn("avatar_cleanup_failed", "path", old.Path, "error", err)
		}
	}
	if err := s.Cache.Del(ctx, cache.MemberKey(memberID)); err != nil {
		l.Warn("profile_cache_evict_failed", "error", err)
	}
	l.Info("avatar_uploaded", "image_id", id)
	return img, nil
}
