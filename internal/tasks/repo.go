package tasks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/s1natex/tasks-file-api/internal/store"
)

// Repository is the persistence boundary used by the handlers. Update and
// Delete are no-ops for unknown ids; callers check with Get first.
type Repository interface {
	List(ctx context.Context, filter map[string]string) ([]Task, error)
	Get(ctx context.Context, id string) (Task, bool, error)
	Insert(ctx context.Context, t Task) error
	Update(ctx context.Context, id string, t Task) error
	Delete(ctx context.Context, id string) error
}

var tracer = otel.Tracer("tasks/repo")

// FileRepo keeps tasks in the JSON-file record store.
type FileRepo struct {
	db *store.Database[Task]
}

func NewFileRepo(db *store.Database[Task]) *FileRepo {
	return &FileRepo{db: db}
}

// OpenFileRepo opens (or starts) the backing file at path.
func OpenFileRepo(path string) (*FileRepo, error) {
	db, err := store.Open[Task](path)
	if err != nil {
		return nil, err
	}
	return NewFileRepo(db), nil
}

func (r *FileRepo) List(ctx context.Context, filter map[string]string) ([]Task, error) {
	_, span := startSpan(ctx, "store.select")
	defer span.End()

	out := r.db.Select(Table, filter)
	span.SetAttributes(attribute.Int("store.rows", len(out)))
	return out, nil
}

func (r *FileRepo) Get(ctx context.Context, id string) (Task, bool, error) {
	_, span := startSpan(ctx, "store.find_one", attribute.String("task.id", id))
	defer span.End()

	t, ok := r.db.FindOne(Table, id)
	return t, ok, nil
}

func (r *FileRepo) Insert(ctx context.Context, t Task) error {
	_, span := startSpan(ctx, "store.insert", attribute.String("task.id", t.ID))
	defer span.End()

	return recordErr(span, r.db.Insert(Table, t))
}

func (r *FileRepo) Update(ctx context.Context, id string, t Task) error {
	_, span := startSpan(ctx, "store.update", attribute.String("task.id", id))
	defer span.End()

	return recordErr(span, r.db.Update(Table, id, t))
}

func (r *FileRepo) Delete(ctx context.Context, id string) error {
	_, span := startSpan(ctx, "store.delete", attribute.String("task.id", id))
	defer span.End()

	return recordErr(span, r.db.Delete(Table, id))
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func recordErr(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
	}
	return err
}
