package tasks

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/s1natex/tasks-file-api/internal/route"
)

const notFoundMessage = "Task não encontrada."

type taskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

type errResponse struct {
	Error string `json:"error"`
}

// Options configures a Handler. Zero values fall back to slog.Default,
// time.Now and uuid.NewString.
type Options struct {
	ImportPath string
	Logger     *slog.Logger
	Now        func() time.Time
	NewID      func() string
}

// Handler serves the task routes.
type Handler struct {
	repo       Repository
	importPath string
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
	routes     route.Table
}

func NewHandler(repo Repository, opts Options) *Handler {
	h := &Handler{
		repo:       repo,
		importPath: opts.ImportPath,
		logger:     opts.Logger,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.now == nil {
		h.now = func() time.Time { return time.Now().UTC() }
	}
	if h.newID == nil {
		h.newID = uuid.NewString
	}

	h.routes = route.Table{
		{Method: http.MethodGet, Pattern: route.MustCompile("/tasks"), Handler: h.listTasks},
		{Method: http.MethodPost, Pattern: route.MustCompile("/tasks"), Handler: h.createTask},
		{Method: http.MethodPost, Pattern: route.MustCompile("/tasks/import"), Handler: h.importTasks},
		{Method: http.MethodPut, Pattern: route.MustCompile("/tasks/:id"), Handler: h.updateTask},
		{Method: http.MethodPatch, Pattern: route.MustCompile("/tasks/:id/complete"), Handler: h.completeTask},
		{Method: http.MethodDelete, Pattern: route.MustCompile("/tasks/:id"), Handler: h.deleteTask},
	}
	return h
}

// RegisterRoutes hands everything under /tasks to the handler's route table.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Handle("/tasks", h.routes)
	r.Handle("/tasks/*", h.routes)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	var filter map[string]string
	if search := r.URL.Query().Get("search"); search != "" {
		filter = map[string]string{
			"title":       search,
			"description": search,
		}
	}

	tasks, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.internalError(w, r, "list_tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return
	}

	t := h.newTask(req.Title, req.Description)
	if err := h.repo.Insert(r.Context(), t); err != nil {
		h.internalError(w, r, "create_task", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateTask(w http.ResponseWriter, r *http.Request) {
	id := route.Param(r, "id")

	t, ok, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "update_task", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}

	var req taskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid_json"})
		return
	}

	// With neither field supplied the last branch still runs: description is
	// overwritten with whatever was sent (possibly nothing) and updated_at moves.
	switch {
	case present(req.Title) && present(req.Description):
		t.Title = req.Title
		t.Description = req.Description
	case present(req.Title):
		t.Title = req.Title
	default:
		t.Description = req.Description
	}
	now := h.now()
	t.UpdatedAt = &now

	if err := h.repo.Update(r.Context(), id, t); err != nil {
		h.internalError(w, r, "update_task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completeTask(w http.ResponseWriter, r *http.Request) {
	id := route.Param(r, "id")

	t, ok, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "complete_task", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}

	now := h.now()
	t.CompletedAt = &now
	t.UpdatedAt = &now

	if err := h.repo.Update(r.Context(), id, t); err != nil {
		h.internalError(w, r, "complete_task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := route.Param(r, "id")

	_, ok, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.internalError(w, r, "delete_task", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		h.internalError(w, r, "delete_task", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) newTask(title, description *string) Task {
	return Task{
		ID:          h.newID(),
		Title:       title,
		Description: description,
		CreatedAt:   h.now(),
	}
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+"_error",
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errResponse{Error: "unexpected_error"})
}

// present reports whether a request field was sent with a non-empty value.
func present(s *string) bool {
	return s != nil && *s != ""
}

// decodeJSON treats an empty body as an empty object.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()

	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = io.WriteString(w, notFoundMessage)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
