package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/tpodo/internal/entry"
	"github.com/hitoshi/tpodo/internal/model"
)

// EntryServiceInterface は作業記録ハンドラーが必要とするサービスインターフェース。
type EntryServiceInterface interface {
	List(ctx context.Context, userID, from, to string) ([]model.TimeEntry, error)
	Create(ctx context.Context, userID string, in entry.CreateInput) (*model.TimeEntry, error)
	Update(ctx context.Context, userID, entryID string, in entry.UpdateInput) (*model.TimeEntry, error)
	Delete(ctx context.Context, userID, entryID string) error
}

// EntryHandler は作業記録のHTTPハンドラー。
type EntryHandler struct {
	service EntryServiceInterface
}

// NewEntryHandler はEntryHandlerを生成する。
func NewEntryHandler(service EntryServiceInterface) *EntryHandler {
	return &EntryHandler{service: service}
}

type createEntryRequest struct {
	Title     string  `json:"title"`
	ProjectID *string `json:"projectId"`
	TaskID    *string `json:"taskId"`
	TeamID    *string `json:"teamId"`
	Start     string  `json:"start"`
	End       *string `json:"end"`
	Billable  bool    `json:"billable"`
}

// updateEntryRequest はPATCHのボディ。省略またはnullのフィールドは変更しない。
// endに空文字列を指定すると計測中に戻す。
type updateEntryRequest struct {
	Title     *string `json:"title"`
	ProjectID *string `json:"projectId"`
	TaskID    *string `json:"taskId"`
	TeamID    *string `json:"teamId"`
	Start     *string `json:"start"`
	End       *string `json:"end"`
	Billable  *bool   `json:"billable"`
}

// ListEntries は作業記録の一覧を返す。from/toを指定するとその範囲に重なる記録に絞る。
// GET /api/entries?from=...&to=...
func (h *EntryHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	entries, err := h.service.List(r.Context(), userID, q.Get("from"), q.Get("to"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toEntryResponse(&entries[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out})
}

// CreateEntry は作業記録を作成する。
// POST /api/entries
func (h *EntryHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.service.Create(r.Context(), userID, entry.CreateInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"entry": toEntryResponse(e)})
}

// UpdateEntry は作業記録を部分更新する。
// PATCH /api/entries/{id}
func (h *EntryHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req updateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	e, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), entry.UpdateInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"entry": toEntryResponse(e)})
}

// DeleteEntry は作業記録を削除する。
// DELETE /api/entries/{id}
func (h *EntryHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetupEntryRoutes は作業記録関連のルーティングを設定したchi.Routerを返す。
func SetupEntryRoutes(service EntryServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewEntryHandler(service)
	r.Route("/api/entries", h.mount)
	return r
}

func (h *EntryHandler) mount(r chi.Router) {
	r.Get("/", h.ListEntries)
	r.Post("/", h.CreateEntry)
	r.Patch("/{id}", h.UpdateEntry)
	r.Delete("/{id}", h.DeleteEntry)
}
