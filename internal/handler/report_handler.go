package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tpodo/internal/report"
	"github.com/hitoshi/tpodo/internal/timesheet"
)

// ReportServiceInterface はレポートハンドラーが必要とするサービスインターフェース。
type ReportServiceInterface interface {
	Daily(ctx context.Context, userID string, days int, label string) (*timesheet.Series, error)
	Projects(ctx context.Context, userID string, days int) (*report.ProjectReport, error)
	Timeline(ctx context.Context, userID, date string) (*report.TimelineReport, error)
}

// ReportHandler は個人の集計レポートのHTTPハンドラー。
type ReportHandler struct {
	service ReportServiceInterface
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportServiceInterface) *ReportHandler {
	return &ReportHandler{service: service}
}

// Daily は日別の作業時間を返す。
// GET /api/reports/daily?days=7&label=weekday
func (h *ReportHandler) Daily(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, ok := parseDays(w, r)
	if !ok {
		return
	}

	series, err := h.service.Daily(r.Context(), userID, days, r.URL.Query().Get("label"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSeriesResponse(*series))
}

// Projects はプロジェクト別の作業時間を返す。
// GET /api/reports/projects?days=30
func (h *ReportHandler) Projects(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	days, ok := parseDays(w, r)
	if !ok {
		return
	}

	rep, err := h.service.Projects(r.Context(), userID, days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toProjectReportResponse(rep))
}

// Timeline は1日分のタイムラインを返す。
// GET /api/reports/timeline?date=2024-01-02
func (h *ReportHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	tl, err := h.service.Timeline(r.Context(), userID, r.URL.Query().Get("date"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTimelineResponse(tl))
}

// SetupReportRoutes はレポート関連のルーティングを設定したchi.Routerを返す。
func SetupReportRoutes(service ReportServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewReportHandler(service)
	r.Route("/api/reports", h.mount)
	return r
}

func (h *ReportHandler) mount(r chi.Router) {
	r.Get("/daily", h.Daily)
	r.Get("/projects", h.Projects)
	r.Get("/timeline", h.Timeline)
}
