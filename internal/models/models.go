package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleOwner    Role = "OWNER"
	RoleEmployee Role = "EMPLOYEE"
	RoleUser     Role = "USER"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleEmployee, RoleUser:
		return true
	}
	return false
}

type Address struct {
	ProvinceOrMunicipality string `json:"provinceOrMunicipality"`
	DistrictOrTown         string `json:"districtOrTown"`
	Detail                 string `json:"detail"`
}

func (a Address) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *Address) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("address: unsupported source %T", src)
	}
}

type Member struct {
	ID             string     `gorm:"type:varchar(36);primaryKey"                                    json:"id"`
	Email          string     `gorm:"size:255;not null;uniqueIndex;index:idx_members_email_role,priority:1" json:"email"`
	Password       string     `gorm:"not null"                                                       json:"-"`
	Salt           string     `gorm:"not null"                                                       json:"-"`
	FullName       string     `gorm:"size:255"                                                       json:"fullName"`
	Description    string     `gorm:"type:text"                                                      json:"description,omitempty"`
	PhoneNumber    string     `gorm:"size:32"                                                        json:"phoneNumber,omitempty"`
	CID            string     `gorm:"column:cid;size:32"                                             json:"cid,omitempty"`
	Gender         string     `gorm:"size:16"                                                        json:"gender,omitempty"`
	Birthday       *time.Time `                                                                      json:"birthday,omitempty"`
	DateOfIssue    *time.Time `                                                                      json:"dateOfIssue,omitempty"`
	PlaceOfIssue   string     `gorm:"size:255"                                                       json:"placeOfIssue,omitempty"`
	Facebook       string     `gorm:"size:255"                                                       json:"facebook,omitempty"`
	Address        *Address   `gorm:"type:text"                                                      json:"address,omitempty"`
	Is2FA          bool       `gorm:"column:is_2fa;not null"                                         json:"is2FA"`
	RoleMember     Role       `gorm:"size:16;not null;index:idx_members_email_role,priority:2"       json:"roleMember"`
	IsBanned       bool       `gorm:"not null;index"                                                 json:"isBanned"`
	IsNotification bool       `gorm:"not null"                                                       json:"isNotification"`
	StoreID        *string    `gorm:"type:varchar(36);index"                                         json:"storeId,omitempty"`
	WorkBranchID   *string    `gorm:"type:varchar(36);index"                                         json:"workBranchId,omitempty"`
	CreatedAt      time.Time  `                                                                      json:"createdAt"`
	UpdatedAt      time.Time  `                                                                      json:"updatedAt"`

	Image *Image `gorm:"-" json:"image,omitempty"`
}

// Sanitized returns a copy without credential material.
func (m Member) Sanitized() Member {
	m.Password = ""
	m.Salt = ""
	return m
}

type DeviceSession struct {
	ID           string    `gorm:"type:varchar(36);primaryKey"   json:"id"`
	DeviceID     string    `gorm:"size:128;not null;uniqueIndex" json:"deviceId"`
	Name         string    `gorm:"size:255"                      json:"name"`
	UA           string    `gorm:"column:ua;size:512"            json:"ua"`
	SecretKey    string    `gorm:"size:64;not null"              json:"-"`
	RefreshToken string    `gorm:"size:128;not null;index"       json:"-"`
	ExpiredAt    time.Time `gorm:"not null;index"                json:"expiredAt"`
	IPAddress    string    `gorm:"size:64"                       json:"ipAddress"`
	MemberID     string    `gorm:"type:varchar(36);not null;index" json:"memberId"`
	Member       *Member   `gorm:"constraint:OnDelete:CASCADE"   json:"-"`
	CreatedAt    time.Time `                                     json:"createdAt"`
	UpdatedAt    time.Time `                                     json:"updatedAt"`
}

type AuditStatus string

const (
	AuditSuccess AuditStatus = "SUCCESS"
	AuditFailure AuditStatus = "FAILURE"
)

type AuditLog struct {
	ID        string         `gorm:"type:varchar(26);primaryKey"       json:"id"`
	MemberID  string         `gorm:"type:varchar(36);not null;index"   json:"memberId"`
	Action    string         `gorm:"size:64;not null;index"            json:"action"`
	Context   string         `gorm:"size:128"                          json:"context"`
	Status    AuditStatus    `gorm:"size:16;not null;index"            json:"status"`
	Details   map[string]any `gorm:"type:text;serializer:json"         json:"details,omitempty"`
	CreatedAt time.Time      `gorm:"index"                             json:"createdAt"`
}

type LinkType string

const LinkTypeMember LinkType = "MEMBER"

type Image struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"                    json:"id"`
	Filename  string    `gorm:"size:255;not null"                              json:"filename"`
	Path      string    `gorm:"size:512;not null"                              json:"path"`
	URL       string    `gorm:"size:1024"                                      json:"url"`
	MimeType  string    `gorm:"size:128"                                       json:"mimetype"`
	Size      int64     `                                                      json:"size"`
	LinkType  LinkType  `gorm:"size:32;index:idx_images_link,priority:1"       json:"linkType"`
	LinkID    string    `gorm:"type:varchar(36);index:idx_images_link,priority:2" json:"linkId"`
	CreatedAt time.Time `                                                      json:"createdAt"`
	UpdatedAt time.Time `                                                      json:"updatedAt"`
}

func All() []any {
	return []any{&Member{}, &DeviceSession{}, &AuditLog{}, &Image{}}
}
