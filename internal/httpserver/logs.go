package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/retail_console/internal/middleware"
	"github.com/Skotchmaster/retail_console/internal/models"
	"github.com/Skotchmaster/retail_console/internal/repo"
	"github.com/Skotchmaster/retail_console/internal/service"
	"github.com/Skotchmaster/retail_console/pkg/logging"
	"github.com/Skotchmaster/retail_console/pkg/pagination"
)

const dateLayout = "2006-01-02"

type LogsHTTP struct {
	Svc *service.AuditService
}

func (h *LogsHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "logs.list")

	actor, _ := middleware.CurrentMember(c)
	f := repo.AuditFilter{
		MemberID:  c.QueryParam("memberId"),
		Status:    models.AuditStatus(c.QueryParam("status")),
		Search:    c.QueryParam("search"),
		SortBy:    c.QueryParam("sortBy"),
		SortOrder: c.QueryParam("sortOrder"),
		Page:      pagination.ParseIntDefault(c.QueryParam("page"), pagination.DefaultPage),
		Limit:     pagination.ParseIntDefault(c.QueryParam("limit"), pagination.DefaultSize),
	}
	if raw := c.QueryParam("date"); raw != "" {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			return badRequest(l, "list_logs_failed", "date must be YYYY-MM-DD", err)
		}
		f.Date = &d
	}

	page, err := h.Svc.ListByMember(ctx, actor, f)
	if err != nil {
		return fail(l, "list_logs_failed", err)
	}
	return c.JSON(http.StatusOK, page)
}
