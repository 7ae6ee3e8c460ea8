package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/retail_console/internal/metrics"
	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/pkg/db"
	"github.com/Skotchmaster/retail_console/pkg/logging"
)

type Deps struct {
	Auth    *AuthHTTP
	Members *MembersHTTP
	Logs    *LogsHTTP
	Images  *ImagesHTTP

	Gate    *middleware.Gate
	Metrics *metrics.Metrics
	DB      db.Pinger

	ThrottleWindow time.Duration
	// CSRF is nil when the refresh cookie is not CSRF protected.
	CSRF *middleware.CSRFConfig

	StaticPrefix string
	StaticDir    string
}

// throttle builds a separate limiter per route: one request per window and
// client IP.
func throttle(window time.Duration) echo.MiddlewareFunc {
	if window <= 0 {
		window = 5 * time.Second
	}
	return echo.WrapMiddleware(httprate.Limit(1, window, httprate.WithKeyFuncs(httprate.KeyByIP)))
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		if err := db.Ping(c.Request().Context(), d.DB); err != nil {
			logging.FromContext(c.Request().Context()).With("handler", "health.ready").Error("db_not_ready", "error", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
	if d.StaticDir != "" && d.StaticPrefix != "" {
		e.Static(d.StaticPrefix, d.StaticDir)
	}

	g := e.Group("/members")

	g.POST("/sign-in/step-1", d.Auth.SignInStep1, throttle(d.ThrottleWindow))
	g.POST("/sign-in/step-2", d.Auth.SignInStep2, throttle(d.ThrottleWindow))
	if d.CSRF != nil {
		csrf := middleware.CSRF(*d.CSRF)
		g.GET("/csrf-token", func(c echo.Context) error {
			return c.JSON(http.StatusOK, echo.Map{"csrfToken": c.Get(middleware.CSRFTokenKey)})
		}, csrf)
		g.POST("/refresh-token", d.Auth.RefreshToken, throttle(d.ThrottleWindow), csrf)
	} else {
		g.POST("/refresh-token", d.Auth.RefreshToken, throttle(d.ThrottleWindow))
	}
	g.POST("/sign-up/owner", d.Members.SignUpOwner)

	private := g.Group("")
	private.Use(d.Gate.RequireAuth)

	private.POST("/sign-out", d.Auth.SignOut)
	private.POST("/sign-up/admin", d.Members.SignUpAdmin, middleware.RequireRole(models.RoleAdmin))
	private.POST("/sign-up/employee", d.Members.SignUpEmployee, middleware.RequireRole(models.RoleOwner))
	private.GET("/profile", d.Members.Profile)
	private.GET("/profile/:id", d.Members.ProfileByID)
	private.GET("/search", d.Members.Search)
	private.PATCH("/ban", d.Members.UpdateIsBanned, middleware.RequireRole(models.RoleAdmin))
	private.PATCH("/role", d.Members.UpdateRole, middleware.RequireRole(models.RoleAdmin))
	private.PATCH("/settings", d.Members.UpdateSettings)
	private.PATCH("/:id", d.Members.UpdateProfile)
	private.POST("/avatar", d.Images.UploadAvatar)
	private.GET("/logs", d.Logs.List)
}
