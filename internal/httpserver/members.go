package httpserver

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/service"
	"github.com/Skotchmaster/retail_console/internal/transport"
	"github.com/Skotchmaster/retail_console/pkg/logging"
	"github.com/Skotchmaster/retail_console/pkg/pagination"
)

type MembersHTTP struct {
	Svc *service.MemberService
}

var success = transport.MessageResponse{Message: "Success"}

func signUpInput(req transport.SignUpRequest) service.SignUpInput {
	return service.SignUpInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		Description:  req.Description,
		PhoneNumber:  req.PhoneNumber,
		StoreID:      req.StoreID,
		WorkBranchID: req.WorkBranchID,
	}
}

func (h *MembersHTTP) SignUpOwner(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.sign_up_owner")

	var req transport.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "sign_up_failed", "invalid body", err)
	}
	m, err := h.Svc.SignUpOwner(ctx, signUpInput(req))
	if err != nil {
		return fail(l, "sign_up_failed", err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *MembersHTTP) SignUpAdmin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.sign_up_admin")

	actor, _ := middleware.CurrentMember(c)
	var req transport.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "sign_up_failed", "invalid body", err)
	}
	m, err := h.Svc.SignUpAdmin(ctx, actor, signUpInput(req))
	if err != nil {
		return fail(l, "sign_up_failed", err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *MembersHTTP) SignUpEmployee(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.sign_up_employee")

	owner, _ := middleware.CurrentMember(c)
	var req transport.SignUpRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "sign_up_failed", "invalid body", err)
	}
	m, err := h.Svc.SignUpEmployee(ctx, owner, signUpInput(req))
	if err != nil {
		return fail(l, "sign_up_failed", err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *MembersHTTP) Profile(c echo.Context) error {
	m, ok := middleware.CurrentMember(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, apperr.Message(apperr.ErrUnauthenticated))
	}
	return c.JSON(http.StatusOK, m.Sanitized())
}

func (h *MembersHTTP) ProfileByID(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.profile_by_id")

	m, err := h.Svc.FindOneByID(ctx, c.Param("id"))
	if err != nil {
		return fail(l, "get_member_failed", err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *MembersHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.search")

	f := service.SearchFilter{
		Search:       c.QueryParam("search"),
		Role:         models.Role(c.QueryParam("roleMember")),
		StoreID:      c.QueryParam("storeId"),
		WorkBranchID: c.QueryParam("workBranchId"),
		SortBy:       c.QueryParam("sortBy"),
		SortOrder:    c.QueryParam("sortOrder"),
		Page:         pagination.ParseIntDefault(c.QueryParam("page"), pagination.DefaultPage),
		Limit:        pagination.ParseIntDefault(c.QueryParam("limit"), pagination.DefaultSize),
	}
	if raw := c.QueryParam("isBanned"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(l, "search_failed", "isBanned must be a boolean", err)
		}
		f.IsBanned = &b
	}

	page, err := h.Svc.Search(ctx, f)
	if err != nil {
		return fail(l, "search_failed", err)
	}
	return c.JSON(http.StatusOK, page)
}

func (h *MembersHTTP) UpdateIsBanned(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.update_is_banned")

	actor, _ := middleware.CurrentMember(c)
	var req transport.BanRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "ban_failed", "invalid body", err)
	}
	if err := h.Svc.UpdateIsBanned(ctx, actor, req.MemberID, req.IsBanned); err != nil {
		return fail(l, "ban_failed", err)
	}
	return c.JSON(http.StatusOK, success)
}

func (h *MembersHTTP) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.update_role")

	actor, _ := middleware.CurrentMember(c)
	var req transport.RoleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_role_failed", "invalid body", err)
	}
	if err := h.Svc.UpdateRole(ctx, actor, req.ID, req.RoleMember); err != nil {
		return fail(l, "update_role_failed", err)
	}
	return c.JSON(http.StatusOK, success)
}

func (h *MembersHTTP) UpdateSettings(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.update_settings")

	member, _ := middleware.CurrentMember(c)
	var req transport.SettingsRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_settings_failed", "invalid body", err)
	}
	err := h.Svc.UpdateMySetting(ctx, member, service.SettingsPatch{
		Password:       req.Password,
		Description:    req.Description,
		FullName:       req.FullName,
		PhoneNumber:    req.PhoneNumber,
		Address:        req.Address,
		Gender:         req.Gender,
		Facebook:       req.Facebook,
		Birthday:       req.Birthday,
		Is2FA:          req.Is2FA,
		IsNotification: req.IsNotification,
	})
	if err != nil {
		return fail(l, "update_settings_failed", err)
	}
	return c.JSON(http.StatusOK, success)
}

func (h *MembersHTTP) UpdateProfile(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "members.update_profile")

	actor, _ := middleware.CurrentMember(c)
	var req transport.ProfileRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_profile_failed", "invalid body", err)
	}
	err := h.Svc.UpdateProfileByHigherPrivilege(ctx, actor, c.Param("id"), service.ProfilePatch{
		CID:          req.CID,
		DateOfIssue:  req.DateOfIssue,
		PlaceOfIssue: req.PlaceOfIssue,
		Birthday:     req.Birthday,
		Gender:       req.Gender,
		Address:      req.Address,
	})
	if err != nil {
		return fail(l, "update_profile_failed", err)
	}
	return c.JSON(http.StatusOK, success)
}
