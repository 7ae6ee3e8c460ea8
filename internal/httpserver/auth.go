package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/retail_console/internal/apperr"
	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/service"
	"github.com/Skotchmaster/retail_console/internal/transport"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

const DeviceNameHeader = "X-Device-Name"

type AuthHTTP struct {
	Svc     *service.AuthService
	Cookies CookieConfig
}

func deviceMeta(c echo.Context) service.DeviceMeta {
	req := c.Request()
	return service.DeviceMeta{
		DeviceID: middleware.Fingerprint(req),
		Name:     req.Header.Get(DeviceNameHeader),
		UA:       req.UserAgent(),
		IP:       c.RealIP(),
	}
}

func (h *AuthHTTP) session(c echo.Context, res *service.SessionResult) error {
	c.SetCookie(h.Cookies.Create(RefreshCookieName, res.RefreshToken, res.ExpiredAt))
	return c.JSON(http.StatusOK, transport.SessionResponse{
		Token:          res.Token,
		TokenExpiresAt: res.TokenExpiresAt,
		ExpiredAt:      res.ExpiredAt,
		Member:         res.Member,
	})
}

func (h *AuthHTTP) SignInStep1(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_in_step1")

	var req transport.SignInRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "sign_in_failed", "invalid body", err)
	}

	res, err := h.Svc.SignInStep1(ctx, service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.RoleMember,
	}, deviceMeta(c))
	if err != nil {
		return fail(l, "sign_in_failed", err)
	}

	if res.Session == nil {
		l.Info("sign_in_challenge_sent")
		return c.JSON(http.StatusOK, transport.MessageResponse{Message: res.Message})
	}
	l.Info("sign_in_successful")
	return h.session(c, res.Session)
}

func (h *AuthHTTP) SignInStep2(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_in_step2")

	var req transport.SignInRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "sign_in_failed", "invalid body", err)
	}

	res, err := h.Svc.SignInStep2(ctx, service.SignInInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     req.RoleMember,
		OTP:      req.OTP,
	}, deviceMeta(c))
	if err != nil {
		return fail(l, "sign_in_failed", err)
	}
	l.Info("sign_in_successful")
	return h.session(c, res)
}

func (h *AuthHTTP) RefreshToken(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh_token")

	ck, err := c.Cookie(RefreshCookieName)
	if err != nil || ck.Value == "" {
		return fail(l, "refresh_failed", apperr.ErrUnauthorized)
	}

	res, err := h.Svc.RefreshToken(ctx, middleware.Fingerprint(c.Request()), ck.Value)
	if err != nil {
		c.SetCookie(h.Cookies.Delete(RefreshCookieName))
		return fail(l, "refresh_failed", err)
	}
	return h.session(c, res)
}

func (h *AuthHTTP) SignOut(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.sign_out")

	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return fail(l, "sign_out_failed", apperr.ErrUnauthenticated)
	}
	c.SetCookie(h.Cookies.Delete(RefreshCookieName))

	if err := h.Svc.SignOut(ctx, claims.MemberID, claims.DeviceID); err != nil {
		return fail(l, "sign_out_failed", err)
	}
	l.Info("sign_out_successful")
	return c.JSON(http.StatusOK, transport.MessageResponse{Message: "Success"})
}
