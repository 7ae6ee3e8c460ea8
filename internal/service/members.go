package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/authz"
	"github.com/Skotchmaster/retail_console/internal/cache"
	"github.com/Skotchmaster/retail_console/internal/hash"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/search"
	"github.com/Skotchmaster/retail_console/internal/secret"
	"github.com/Skotchmaster/retail_console/pkg/logging"
	"github.com/Skotchmaster/retail_console/pkg/pagination"
)

const minPasswordLength = 8

type MemberService struct {
	Members      MemberStore
	Sessions     SessionStore
	Images       ImageStore
	Cache        cache.Store
	Secrets      *secret.Provisioner
	Authz        *authz.Evaluator
	Audit        *AuditService
	Index        MemberIndex
	RootPassword string
	ProfileTTL   time.Duration
}

type SignUpInput struct {
	Email        string
	Password     string
	FullName     string
	Description  string
	PhoneNumber  string
	StoreID      string
	WorkBranchID string
}

type ProfilePatch struct {
	CID          *string
	DateOfIssue  *time.Time
	PlaceOfIssue *string
	Birthday     *time.Time
	Gender       *string
	Address      *models.Address
}

type SettingsPatch struct {
	Password       *string
	Description    *string
	FullName       *string
	PhoneNumber    *string
	Address        *models.Address
	Gender         *string
	Facebook       *string
	Birthday       *time.Time
	Is2FA          *bool
	IsNotification *bool
}

// Bootstrap creates the root admin once. It is safe to call on every start.
func (s *MemberService) Bootstrap(ctx context.Context) error {
	l := logging.FromContext(ctx).With("svc", "members.bootstrap")

	email := normalizeEmail(s.Authz.RootEmail)
	if email == "" || s.RootPassword == "" {
		return validationError("root admin email and password are required")
	}
	n, err := s.Members.CountByEmailAndRole(ctx, email, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count root admin: %w", err)
	}
	if n > 0 {
		return nil
	}

	pw, salt, err := hash.NewCredentials(s.RootPassword)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}
	root := &models.Member{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    pw,
		Salt:        salt,
		FullName:    "Admin Root",
		Description: "Admin Root System",
		RoleMember:  models.RoleAdmin,
	}
	if err := s.Members.CreateMember(ctx, root); err != nil {
		return fmt.Errorf("create root admin: %w", err)
	}
	s.index(ctx, root)
	l.Info("root_admin_created", "member_id", root.ID)
	return nil
}

func (s *MemberService) SignUpOwner(ctx context.Context, in SignUpInput) (*models.Member, error) {
	m := &models.Member{RoleMember: models.RoleOwner}
	if in.StoreID != "" {
		m.StoreID = strPtr(in.StoreID)
	}
	return s.signUp(ctx, "members.sign_up_owner", in, m)
}

// SignUpAdmin is reserved for the root admin.
func (s *MemberService) SignUpAdmin(ctx context.Context, actor *models.Member, in SignUpInput) (*models.Member, error) {
	if !s.Authz.IsRoot(actor) {
		logging.FromContext(ctx).Warn("sign_up_admin_denied", "status", 403, "actor_id", actorID(actor))
		return nil, fmt.Errorf("only the root admin creates admins: %w", apperr.ErrForbidden)
	}
	return s.signUp(ctx, "members.sign_up_admin", in, &models.Member{RoleMember: models.RoleAdmin})
}

// SignUpEmployee registers an employee in the owner's store.
func (s *MemberService) SignUpEmployee(ctx context.Context, owner *models.Member, in SignUpInput) (*models.Member, error) {
	if owner == nil || owner.RoleMember != models.RoleOwner || owner.StoreID == nil || *owner.StoreID == "" {
		logging.FromContext(ctx).Warn("sign_up_employee_denied", "status", 403, "actor_id", actorID(owner))
		return nil, fmt.Errorf("only owners with a store create employees: %w", apperr.ErrForbidden)
	}
	m := &models.Member{RoleMember: models.RoleEmployee, StoreID: strPtr(*owner.StoreID)}
	if in.WorkBranchID != "" {
		m.WorkBranchID = strPtr(in.WorkBranchID)
	}
	return s.signUp(ctx, "members.sign_up_employee", in, m)
}

func (s *MemberService) signUp(ctx context.Context, svc string, in SignUpInput, m *models.Member) (*models.Member, error) {
	l := logging.FromContext(ctx).With("svc", svc)

	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, validationError("email is invalid")
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	n, err := s.Members.CountByEmail(ctx, email)
	if err != nil {
		l.Error("sign_up_failed", "status", 500, "error", err)
		return nil, err
	}
	if n > 0 {
		l.Warn("sign_up_failed", "status", 409, "reason", "email already in use")
		return nil, fmt.Errorf("email %s: %w", email, apperr.ErrConflict)
	}

	pw, salt, err := hash.NewCredentials(in.Password)
	if err != nil {
		l.Error("sign_up_failed", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	m.ID = uuid.NewString()
	m.Email = email
	m.Password = pw
	m.Salt = salt
	m.FullName = in.FullName
	m.Description = in.Description
	m.PhoneNumber = in.PhoneNumber

	if err := s.Members.CreateMember(ctx, m); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			l.Warn("sign_up_failed", "status", 409, "reason", "email already in use")
		} else {
			l.Error("sign_up_failed", "status", 500, "error", err)
		}
		return nil, err
	}
	s.index(ctx, m)
	l.Info("member_created", "member_id", m.ID, "role", m.RoleMember)

	out := m.Sanitized()
	return &out, nil
}

// FindOneByID returns the sanitized profile of id, reading through the
// profile cache. Banned members are reported as unauthorized.
func (s *MemberService) FindOneByID(ctx context.Context, id string) (*models.Member, error) {
	l := logging.FromContext(ctx).With("svc", "members.find_one")
	key := cache.MemberKey(id)

	fields, err := s.Cache.HGetAll(ctx, key)
	if err != nil {
		l.Error("profile_cache_read_failed", "member_id", id, "error", err)
		return nil, err
	}

	var m *models.Member
	if len(fields) > 0 {
		m, err = decodeProfile(fields)
		if err != nil {
			l.Warn("profile_cache_corrupt", "member_id", id, "error", err)
			_ = s.Cache.Del(ctx, key)
			m = nil
		}
	}

	if m == nil {
		m, err = s.Members.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if img, err := s.Images.FindImageByLink(ctx, models.LinkTypeMember, id); err == nil {
			m.Image = img
		} else if !errors.Is(err, apperr.ErrNotFound) {
			l.Warn("avatar_lookup_failed", "member_id", id, "error", err)
		}
		s.cacheProfile(ctx, m)
	}

	if m.IsBanned {
		return nil, fmt.Errorf("member %s is banned: %w", id, apperr.ErrUnauthorized)
	}
	out := m.Sanitized()
	return &out, nil
}

func (s *MemberService) cacheProfile(ctx context.Context, m *models.Member) {
	l := logging.FromContext(ctx)
	fields, err := encodeProfile(*m)
	if err != nil {
		l.Warn("profile_cache_write_failed", "member_id", m.ID, "error", err)
		return
	}
	key := cache.MemberKey(m.ID)
	if err := s.Cache.HSetAll(ctx, key, fields); err != nil {
		l.Warn("profile_cache_write_failed", "member_id", m.ID, "error", err)
		return
	}
	ttl := s.ProfileTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := s.Cache.Expire(ctx, key, ttl); err != nil {
		l.Warn("profile_cache_write_failed", "member_id", m.ID, "error", err)
		_ = s.Cache.Del(ctx, key)
	}
}

func (s *MemberService) evictProfile(ctx context.Context, id string) error {
	if err := s.Cache.Del(ctx, cache.MemberKey(id)); err != nil {
		return fmt.Errorf("evict profile %s: %w", id, err)
	}
	return nil
}

// authorize resolves target and checks that actor outranks it. Denials are
// written to the audit trail.
func (s *MemberService) authorize(ctx context.Context, actor *models.Member, targetID, action string) (*models.Member, error) {
	target, err := s.Members.FindByID(ctx, targetID)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if !s.Authz.HasHigherPrivilegeThan(actor, target) {
		logging.FromContext(ctx).Warn("privilege_denied", "status", 403, "action", action,
			"actor_id", actorID(actor), "target_id", targetID)
		s.audit(ctx, actor, action, models.AuditFailure, map[string]any{"targetId": targetID, "reason": "insufficient privilege"})
		return nil, fmt.Errorf("%s on %s: %w", action, targetID, apperr.ErrForbidden)
	}
	return target, nil
}

// UpdateIsBanned bans or unbans memberID. Banning also signs the member out
// of every device.
func (s *MemberService) UpdateIsBanned(ctx context.Context, actor *models.Member, memberID string, banned bool) error {
	const action = "BAN_MEMBER"
	l := logging.FromContext(ctx).With("svc", "members.update_is_banned", "target_id", memberID)

	target, err := s.authorize(ctx, actor, memberID, action)
	if err != nil {
		return err
	}
	if err := s.Members.UpdateFields(ctx, target.ID, map[string]any{"is_banned": banned}); err != nil {
		l.Error("ban_failed", "status", 500, "error", err)
		return err
	}
	if banned {
		if err := s.revokeSessions(ctx, target.ID); err != nil {
			l.Error("ban_failed", "status", 500, "reason", "session revocation", "error", err)
			return err
		}
	}
	if err := s.evictProfile(ctx, target.ID); err != nil {
		return err
	}
	target.IsBanned = banned
	s.index(ctx, target)
	s.audit(ctx, actor, action, models.AuditSuccess, map[string]any{"targetId": target.ID, "isBanned": banned})
	l.Info("member_ban_updated", "is_banned", banned)
	return nil
}

// UpdateRole changes the role of id. Granting ADMIN is reserved for the root
// admin. The member's sessions are revoked so new tokens carry the new role.
func (s *MemberService) UpdateRole(ctx context.Context, actor *models.Member, id string, role models.Role) error {
	const action = "UPDATE_ROLE"
	l := logging.FromContext(ctx).With("svc", "members.update_role", "target_id", id)

	if !role.Valid() {
		return validationError("roleMember is invalid")
	}
	target, err := s.authorize(ctx, actor, id, action)
	if err != nil {
		return err
	}
	if role == models.RoleAdmin && !s.Authz.IsRoot(actor) {
		s.audit(ctx, actor, action, models.AuditFailure, map[string]any{"targetId": id, "reason": "admin grant requires root"})
		return fmt.Errorf("grant admin to %s: %w", id, apperr.ErrForbidden)
	}

	if err := s.Members.UpdateFields(ctx, target.ID, map[string]any{"role_member": role}); err != nil {
		l.Error("update_role_failed", "status", 500, "error", err)
		return err
	}
	if err := s.revokeSessions(ctx, target.ID); err != nil {
		l.Error("update_role_failed", "status", 500, "reason", "session revocation", "error", err)
		return err
	}
	if err := s.evictProfile(ctx, target.ID); err != nil {
		return err
	}
	prev := target.RoleMember
	target.RoleMember = role
	s.index(ctx, target)
	s.audit(ctx, actor, action, models.AuditSuccess, map[string]any{"targetId": target.ID, "from": prev, "to": role})
	return nil
}

func (s *MemberService) UpdateProfileByHigherPrivilege(ctx context.Context, actor *models.Member, id string, p ProfilePatch) error {
	const action = "UPDATE_PROFILE"
	l := logging.FromContext(ctx).With("svc", "members.update_profile", "target_id", id)

	target, err := s.authorize(ctx, actor, id, action)
	if err != nil {
		return err
	}

	patch := map[string]any{}
	setIf(patch, "cid", p.CID)
	setIf(patch, "date_of_issue", p.DateOfIssue)
	setIf(patch, "place_of_issue", p.PlaceOfIssue)
	setIf(patch, "birthday", p.Birthday)
	setIf(patch, "gender", p.Gender)
	if p.Address != nil {
		patch["address"] = p.Address
	}

	if err := s.updateMember(ctx, target.ID, patch); err != nil {
		l.Error("update_profile_failed", "status", 500, "error", err)
		return err
	}
	s.audit(ctx, actor, action, models.AuditSuccess, map[string]any{"targetId": target.ID, "fields": keys(patch)})
	return nil
}

// UpdateMySetting edits the caller's own profile. A new password gets a new
// salt.
func (s *MemberService) UpdateMySetting(ctx context.Context, member *models.Member, p SettingsPatch) error {
	l := logging.FromContext(ctx).With("svc", "members.update_my_setting")
	if member == nil {
		return apperr.ErrUnauthenticated
	}

	patch := map[string]any{}
	if p.Password != nil {
		if len(*p.Password) < minPasswordLength {
			return validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
		}
		pw, salt, err := hash.NewCredentials(*p.Password)
		if err != nil {
			l.Error("update_settings_failed", "status", 500, "reason", "cannot hash the password", "error", err)
			return err
		}
		patch["password"] = pw
		patch["salt"] = salt
	}
	setIf(patch, "description", p.Description)
	setIf(patch, "full_name", p.FullName)
	setIf(patch, "phone_number", p.PhoneNumber)
	setIf(patch, "gender", p.Gender)
	setIf(patch, "facebook", p.Facebook)
	setIf(patch, "birthday", p.Birthday)
	setIf(patch, "is_2fa", p.Is2FA)
	setIf(patch, "is_notification", p.IsNotification)
	if p.Address != nil {
		patch["address"] = p.Address
	}

	if err := s.updateMember(ctx, member.ID, patch); err != nil {
		l.Error("update_settings_failed", "status", 500, "member_id", member.ID, "error", err)
		return err
	}
	fields := keys(patch)
	for i, f := range fields {
		if f == "salt" || f == "password" {
			fields[i] = "password"
		}
	}
	s.audit(ctx, member, "UPDATE_SETTINGS", models.AuditSuccess, map[string]any{"fields": dedupe(fields)})
	return nil
}

func (s *MemberService) updateMember(ctx context.Context, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	if err := s.Members.UpdateFields(ctx, id, patch); err != nil {
		return err
	}
	if err := s.evictProfile(ctx, id); err != nil {
		return err
	}
	if m, err := s.Members.FindByID(ctx, id); err == nil {
		s.index(ctx, m)
	}
	return nil
}

// revokeSessions deletes every device session of id and its cached secrets.
func (s *MemberService) revokeSessions(ctx context.Context, id string) error {
	devices, err := s.Sessions.DeleteSessionsByMember(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range devices {
		if err := s.Secrets.Evict(ctx, id, d); err != nil {
			return err
		}
	}
	return nil
}

type SearchFilter struct {
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

// Search pages through members. A text query goes to the search index when
// one is configured; everything else is answered by the database.
func (s *MemberService) Search(ctx context.Context, f SearchFilter) (pagination.Page[models.Member], error) {
	l := logging.FromContext(ctx).With("svc", "members.search")

	if f.Role != "" && !f.Role.Valid() {
		return pagination.Page[models.Member]{}, validationError("roleMember is invalid")
	}

	var (
		members []models.Member
		total   int64
		err     error
	)
	if s.Index != nil && f.Search != "" {
		members, total, err = s.searchIndex(ctx, f)
		if err != nil {
			l.Warn("index_search_failed", "error", err, "fallback", "sql")
		}
	}
	if s.Index == nil || f.Search == "" || err != nil {
		members, total, err = s.Members.SearchMembers(ctx, repo.MemberFilter{
			Search:       f.Search,
			Role:         f.Role,
			IsBanned:     f.IsBanned,
			StoreID:      f.StoreID,
			WorkBranchID: f.WorkBranchID,
			SortBy:       f.SortBy,
			SortOrder:    f.SortOrder,
			Page:         f.Page,
			Limit:        f.Limit,
		})
		if err != nil {
			l.Error("search_failed", "status", 500, "error", err)
			return pagination.Page[models.Member]{}, err
		}
	}

	if err := s.attachImages(ctx, members); err != nil {
		l.Warn("avatar_lookup_failed", "error", err)
	}
	for i := range members {
		members[i] = members[i].Sanitized()
	}
	return pagination.NewPage(members, f.Page, f.Limit, total), nil
}

func (s *MemberService) searchIndex(ctx context.Context, f SearchFilter) ([]models.Member, int64, error) {
	offset, limit := pagination.Calculate(f.Page, f.Limit)
	total, ids, err := s.Index.Search(ctx, search.Query{
		Text:         f.Search,
		Role:         f.Role,
		IsBanned:     f.IsBanned,
		StoreID:      f.StoreID,
		WorkBranchID: f.WorkBranchID,
		From:         offset,
		Size:         limit,
	})
	if err != nil {
		return nil, 0, err
	}
	found, err := s.Members.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]models.Member, len(found))
	for _, m := range found {
		byID[m.ID] = m
	}
	members := make([]models.Member, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			members = append(members, m)
		}
	}
	return members, total, nil
}

func (s *MemberService) attachImages(ctx context.Context, members []models.Member) error {
	if len(members) == 0 {
		return nil
	}
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	images, err := s.Images.FindImagesByLinks(ctx, models.LinkTypeMember, ids)
	if err != nil {
		return err
	}
	byLink := make(map[string]models.Image, len(images))
	for _, img := range images {
		byLink[img.LinkID] = img
	}
	for i := range members {
		if img, ok := byLink[members[i].ID]; ok {
			img := img
			members[i].Image = &img
		}
	}
	return nil
}

func (s *MemberService) index(ctx context.Context, m *models.Member) {
	if s.Index == nil || m == nil {
		return
	}
	if err := s.Index.Upsert(ctx, m); err != nil {
		logging.FromContext(ctx).Warn("member_index_failed", "member_id", m.ID, "error", err)
	}
}

func (s *MemberService) audit(ctx context.Context, actor *models.Member, action string, status models.AuditStatus, details map[string]any) {
	if s.Audit == nil || actor == nil {
		return
	}
	s.Audit.Record(ctx, AuditEntry{
		MemberID: actor.ID,
		Action:   action,
		Context:  "members",
		Status:   status,
		Details:  details,
	})
}
