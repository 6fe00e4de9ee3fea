package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/library/internal/database"
)

// SweepSchedule is the view of the overdue scheduler that /health reports.
type SweepSchedule interface {
	IsRunning() bool
	NextRun() *time.Time
}

type HealthResponse struct {
	Status       string              `json:"status"`
	Time         string              `json:"time"`
	Version      string              `json:"version,omitempty"`
	Checks       map[string]string   `json:"checks"`
	OverdueSweep *OverdueSweepHealth `json:"overdue_sweep,omitempty"`
}

// OverdueSweepHealth is omitted when no scheduler is configured.
type OverdueSweepHealth struct {
	Scheduled bool       `json:"scheduled"`
	NextRun   *time.Time `json:"next_run,omitempty"`
}

// HealthController answers GET /health. Only the database decides the status
// code; a stopped sweep schedule is reported but does not fail the check.
type HealthController struct {
	db       *database.Database
	version  string
	schedule SweepSchedule
}

// NewHealthController accepts a nil schedule when overdue sweeps are not
// scheduled.
func NewHealthController(db *database.Database, version string, schedule SweepSchedule) *HealthController {
	return &HealthController{
		db:       db,
		version:  version,
		schedule: schedule,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	resp := HealthResponse{
		Status:  "healthy",
		Time:    time.Now().UTC().Format(time.RFC3339),
		Version: h.version,
		Checks:  map[string]string{"database": h.checkDatabase()},
	}

	code := http.StatusOK
	if resp.Checks["database"] != "ok" && resp.Checks["database"] != "not configured" {
		resp.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	if h.schedule != nil {
		resp.OverdueSweep = &OverdueSweepHealth{
			Scheduled: h.schedule.IsRunning(),
			NextRun:   h.schedule.NextRun(),
		}
	}

	c.IndentedJSON(code, resp)
}

func (h *HealthController) checkDatabase() string {
	if h.db == nil {
		return "not configured"
	}
	if err := h.db.Ping(); err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
