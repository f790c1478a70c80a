// Package adminapi exposes the small operator-facing gin HTTP surface
// (spec §4.7): read/update scheduling settings, trigger a run, inspect
// recent runs, and read the roster the scheduler itself works from.
package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ridematch/scheduler/internal/common/health"
	"github.com/ridematch/scheduler/internal/common/logging"
	"github.com/ridematch/scheduler/internal/common/middleware"
	"github.com/ridematch/scheduler/internal/model"
	"github.com/ridematch/scheduler/internal/scheduler"
	"github.com/ridematch/scheduler/internal/store"
	"github.com/ridematch/scheduler/pkg/errors"
)

// Handler wires the Store and Scheduler into the HTTP surface.
type Handler struct {
	store     store.Store
	scheduler *scheduler.Scheduler
	logger    *logging.Logger
	audit     *logging.AuditLogger
}

// NewHandler builds an adminapi.Handler.
func NewHandler(st store.Store, sch *scheduler.Scheduler, logger *logging.Logger, audit *logging.AuditLogger) *Handler {
	return &Handler{store: st, scheduler: sch, logger: logger, audit: audit}
}

// Register mounts all routes onto r, guarding mutating endpoints with
// adminToken (spec §4.7). cacheMW is optional: when non-nil, every GET under
// /api/v1 (roster, runs and settings) is cached briefly since the roster
// only changes once a day (spec §4.7's GETs are idempotent snapshot reads).
func Register(r *gin.Engine, h *Handler, healthHandler *health.Handler, adminToken string, cacheMW *middleware.CacheMiddleware) {
	health.SetupHealthRoutes(r, healthHandler)

	v1 := r.Group("/api/v1")
	{
		if cacheMW != nil {
			v1.Use(cacheMW.CacheShort())
		}

		v1.GET("/destination", h.GetDestination)
		v1.GET("/vehicles", h.GetVehicles)
		v1.GET("/passengers", h.GetPassengers)
		v1.GET("/runs", h.GetRuns)
		v1.GET("/settings", h.GetSettings)

		guarded := v1.Group("")
		guarded.Use(middleware.AdminAuthRequired(adminToken, h.logger))
		{
			guarded.PUT("/settings", h.PutSettings)
			guarded.POST("/run-now", h.PostRunNow)
		}
	}
}

type settingsResponse struct {
	Enabled       bool   `json:"enabled"`
	ScheduledTime string `json:"scheduledTime"`
}

// GetSettings returns the current scheduling settings.
func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.store.GetSchedulingSettings(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, errors.NewServiceUnavailableError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, settingsResponse{
		Enabled:       settings.Enabled,
		ScheduledTime: formatHHMM(settings.ScheduledTime),
	})
}

type putSettingsRequest struct {
	Enabled       bool   `json:"enabled"`
	ScheduledTime string `json:"scheduledTime" binding:"required"`
}

// PutSettings updates the scheduling settings (enabled/scheduledTime).
func (h *Handler) PutSettings(c *gin.Context) {
	var req putSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithValidation(c, err.Error())
		return
	}

	scheduledTime, err := parseHHMM(req.ScheduledTime)
	if err != nil {
		middleware.AbortWithValidation(c, "scheduledTime must be HH:MM")
		return
	}

	settings := model.SchedulingSettings{Enabled: req.Enabled, ScheduledTime: scheduledTime}
	if err := h.store.UpdateSchedulingSettings(c.Request.Context(), settings); err != nil {
		middleware.AbortWithError(c, errors.NewServiceUnavailableError(err.Error()))
		return
	}

	c.JSON(http.StatusOK, settingsResponse{Enabled: req.Enabled, ScheduledTime: req.ScheduledTime})
}

// PostRunNow triggers Scheduler.RunNow synchronously.
func (h *Handler) PostRunNow(c *gin.Context) {
	h.audit.LogRunTriggered(c.Request.Context(), c.ClientIP())

	entry, err := h.scheduler.RunNow(c.Request.Context())
	if err != nil {
		middleware.AbortWithConflict(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, entry)
}

// GetRuns returns a page of recent RunLog entries.
func (h *Handler) GetRuns(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.store.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		middleware.AbortWithError(c, errors.NewServiceUnavailableError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetDestination returns the single configured destination.
func (h *Handler) GetDestination(c *gin.Context) {
	destination, err := h.store.GetDestination(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, errors.NewServiceUnavailableError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, destination)
}

// GetVehicles returns the vehicles currently flagged availableTomorrow.
func (h *Handler) GetVehicles(c *gin.Context) {
	vehicles, err := h.store.GetAvailableVehicles(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, errors.NewServiceUnavailableError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

// GetPassengers returns the passengers currently flagged availableTomorrow.
func (h *Handler) GetPassengers(c *gin.Context) {
	passengers, err := h.store.GetAvailablePassengers(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, errors.NewServiceUnavailableError(err.Error()))
		return
	}
	c.JSON(http.StatusOK, gin.H{"passengers": passengers})
}

func formatHHMM(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return pad(h) + ":" + pad(m)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func parseHHMM(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
