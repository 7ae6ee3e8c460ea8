package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/storage"
)

func TestUploadAvatar(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	owner := f.member(t, "owner@shop.test", models.RoleOwner)

	dir := t.TempDir()
	blobs, err := storage.NewFS(dir, "/images")
	require.NoError(t, err)
	svc := &ImageService{Blobs: blobs, Images: f.repo, Cache: f.members.Cache}

	_, err = f.members.FindOneByID(ctx, owner.ID)
	require.NoError(t, err)
	require.True(t, f.mr.Exists(cache.MemberKey(owner.ID)))

	first, err := svc.UploadAvatar(ctx, owner.ID, "Me.PNG", "image/png", 4, strings.NewReader("png1"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.URL, "/images/members/"+owner.ID+"/"))
	assert.True(t, strings.HasSuffix(first.Path, ".png"))
	assert.False(t, f.mr.Exists(cache.MemberKey(owner.ID)))

	second, err := svc.UploadAvatar(ctx, owner.ID, "me.jpg", "image/jpeg", 4, strings.NewReader("jpg2"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(first.Path)))
	assert.True(t, os.IsNotExist(err), "replaced avatar blob is removed")
	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(second.Path)))
	require.NoError(t, err)
	assert.Equal(t, "jpg2", string(raw))

	m, err := f.members.FindOneByID(ctx, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, m.Image)
	assert.Equal(t, second.ID, m.Image.ID)

	_, err = svc.UploadAvatar(ctx, owner.ID, "doc.pdf", "application/pdf", 3, strings.NewReader("pdf"))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.UploadAvatar(ctx, owner.ID, "big.png", "image/png", MaxAvatarSize+1, strings.NewReader(""))
	require.ErrorIs(t, err, apperr.ErrValidation)
}
