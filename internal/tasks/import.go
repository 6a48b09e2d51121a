package tasks

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/s1natex/tasks-file-api/internal/csvsource"
)

var importRowsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tasks_import_rows_total",
		Help: "CSV rows seen by the import endpoint",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(importRowsTotal)
}

// importTasks loads every row of the configured CSV file as a new task.
// Unreadable rows are logged and skipped; rows inserted before a persistence
// failure are kept.
func (h *Handler) importTasks(w http.ResponseWriter, r *http.Request) {
	batch, err := csvsource.ReadFile(h.importPath)
	if err != nil {
		h.logger.Error("import_source_error",
			slog.String("path", h.importPath),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "import_source_unavailable"})
		return
	}

	for _, re := range batch.Errors {
		importRowsTotal.WithLabelValues("skipped").Inc()
		h.logger.Warn("import_row_skipped",
			slog.Int("line", re.Line),
			slog.String("error", re.Err.Error()),
		)
	}

	inserted := 0
	for _, row := range batch.Rows {
		t := h.newTask(column(row, "title"), column(row, "description"))
		if err := h.repo.Insert(r.Context(), t); err != nil {
			h.internalError(w, r, "import_tasks", err)
			return
		}
		inserted++
		importRowsTotal.WithLabelValues("inserted").Inc()
	}

	h.logger.Info("import_done",
		slog.String("path", h.importPath),
		slog.Any("columns", batch.Columns),
		slog.Int("inserted", inserted),
		slog.Int("skipped", len(batch.Errors)),
	)
	w.WriteHeader(http.StatusCreated)
}

func column(row csvsource.Row, name string) *string {
	v, ok := row.Values[name]
	if !ok {
		return nil
	}
	return strPtr(v)
}
