package transport

import (
	"time"

	"github.com/Skotchmaster/retail_console/internal/models"
)

type SignInRequest struct {
	Email      string      `json:"email"`
	Password   string      `json:"password"`
	RoleMember models.Role `json:"roleMember"`
	OTP        string      `json:"otp"`
}

type SessionResponse struct {
	Token          string        `json:"token"`
	TokenExpiresAt time.Time     `json:"tokenExpiresAt"`
	ExpiredAt      time.Time     `json:"expiredAt"`
	Member         models.Member `json:"member"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SignUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"fullName"`
	Description  string `json:"description"`
	PhoneNumber  string `json:"phoneNumber"`
	StoreID      string `json:"storeId"`
	WorkBranchID string `json:"workBranchId"`
}

type BanRequest struct {
	MemberID string `json:"memberId"`
	IsBanned bool   `json:"isBanned"`
}

type RoleRequest struct {
	ID         string      `json:"id"`
	RoleMember models.Role `json:"roleMember"`
}

type ProfileRequest struct {
	CID          *string         `json:"cid"`
	DateOfIssue  *time.Time      `json:"dateOfIssue"`
	PlaceOfIssue *string         `json:"placeOfIssue"`
	Birthday     *time.Time      `json:"birthday"`
	Gender       *string         `json:"gender"`
	Address      *models.Address `json:"address"`
}

type SettingsRequest struct {
	Password       *string         `json:"password"`
	Description    *string         `json:"description"`
	FullName       *string         `json:"fullName"`
	PhoneNumber    *string         `json:"phoneNumber"`
	Address        *models.Address `json:"address"`
	Gender         *string         `json:"gender"`
	Facebook       *string         `json:"facebook"`
	Birthday       *time.Time      `json:"birthday"`
	Is2FA          *bool           `json:"is2FA"`
	IsNotification *bool           `json:"isNotification"`
}
