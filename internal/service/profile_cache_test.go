package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/retail_console/internal/models"
)

func TestProfileCodec(t *testing.T) {
	t.Parallel()
	birthday := time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC)
	store := "s1"
	m := models.Member{
		ID:         "m1",
		Email:      "a@shop.test",
		Password:   "hash",
		Salt:       "salt",
		RoleMember: models.RoleOwner,
		Is2FA:      true,
		StoreID:    &store,
		Birthday:   &birthday,
		Address:    &models.Address{Detail: "12 Ly Thai To"},
		Image:      &models.Image{ID: "img", URL: "/images/x.png"},
	}

	fields, err := encodeProfile(m)
	require.NoError(t, err)
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "salt")
	assert.Equal(t, `"a@shop.test"`, fields["email"])
	assert.Equal(t, "true", fields["is2FA"])

	got, err := decodeProfile(fields)
	require.NoError(t, err)
	assert.Equal(t, m.Email, got.Email)
	assert.True(t, got.Is2FA)
	require.NotNil(t, got.StoreID)
	assert.Equal(t, "s1", *got.StoreID)
	assert.True(t, birthday.Equal(*got.Birthday))
	assert.Equal(t, "12 Ly Thai To", got.Address.Detail)
	assert.Equal(t, "img", got.Image.ID)
	assert.Empty(t, got.Password)

	_, err = decodeProfile(map[string]string{"email": "not json"})
	require.Error(t, err)
}
