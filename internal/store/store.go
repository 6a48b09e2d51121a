// Package store keeps named tables of records in memory and mirrors the whole
// database to a single JSON file after every mutation.
//
// The file holds an object mapping each table name to an array of records in
// insertion order. A missing file opens as an empty database; a file that
// cannot be read, parsed or validated is an error.
package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	ErrDuplicateID = errors.New("store: duplicate record id")
	ErrIDMismatch  = errors.New("store: record id does not match key")
)

//go:embed schema.json
var schemaJSON string

var fileSchema = jsonschema.MustCompileString("store.schema.json", schemaJSON)

// Record is anything the store can hold. FieldValue reports the text value of
// a named field and whether it is present; it drives Select filters.
type Record interface {
	RecordID() string
	FieldValue(name string) (string, bool)
}

type table[T Record] struct {
	order []string
	rows  map[string]T
}

func newTable[T Record]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) indexOf(id string) int {
	for i, v := range t.order {
		if v == id {
			return i
		}
	}
	return -1
}

// Database is safe for concurrent use. Writers are serialized together with
// the file rewrite.
type Database[T Record] struct {
	mu     sync.RWMutex
	path   string
	tables map[string]*table[T]
}

// Open loads the backing file at path, creating its parent directory if needed.
func Open[T Record](path string) (*Database[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	db := &Database[T]{
		path:   path,
		tables: make(map[string]*table[T]),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return db, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	if err := db.load(data); err != nil {
		return nil, fmt.Errorf("store: load %s: %w", path, err)
	}
	return db, nil
}

func (db *Database[T]) load(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := fileSchema.Validate(doc); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	var raw map[string][]T
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	for name, recs := range raw {
		t := newTable[T]()
		for _, rec := range recs {
			id := rec.RecordID()
			if _, ok := t.rows[id]; ok {
				return fmt.Errorf("table %q: %w: %s", name, ErrDuplicateID, id)
			}
			t.order = append(t.order, id)
			t.rows[id] = rec
		}
		db.tables[name] = t
	}
	return nil
}

// Path returns the backing file location.
func (db *Database[T]) Path() string { return db.path }

// Len returns the number of records in the named table.
func (db *Database[T]) Len(name string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if t, ok := db.tables[name]; ok {
		return len(t.order)
	}
	return 0
}

// Select returns the records of a table in insertion order. With a non-empty
// filter a record is kept when any one of the filtered fields contains its
// pattern (case-sensitive). The result is never nil.
func (db *Database[T]) Select(name string, filter map[string]string) []T {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tables[name]
	if !ok {
		return []T{}
	}

	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		rec := t.rows[id]
		if len(filter) == 0 || matchAny(rec, filter) {
			out = append(out, rec)
		}
	}
	return out
}

func matchAny(rec Record, filter map[string]string) bool {
	for field, pattern := range filter {
		v, ok := rec.FieldValue(field)
		if ok && strings.Contains(v, pattern) {
			return true
		}
	}
	return false
}

// FindOne looks a record up by id.
func (db *Database[T]) FindOne(name, id string) (T, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var zero T
	t, ok := db.tables[name]
	if !ok {
		return zero, false
	}
	rec, ok := t.rows[id]
	return rec, ok
}

// Insert appends rec to the table and persists the database. The table is
// created on first insert.
func (db *Database[T]) Insert(name string, rec T) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	id := rec.RecordID()
	t, existed := db.tables[name]
	if !existed {
		t = newTable[T]()
		db.tables[name] = t
	}
	if _, ok := t.rows[id]; ok {
		return fmt.Errorf("table %q: %w: %s", name, ErrDuplicateID, id)
	}

	t.order = append(t.order, id)
	t.rows[id] = rec

	if err := db.flush(); err != nil {
		t.order = t.order[:len(t.order)-1]
		delete(t.rows, id)
		if !existed {
			delete(db.tables, name)
		}
		return err
	}
	return nil
}

// Update replaces the record stored under id. It does nothing when id is not
// present; callers check with FindOne first.
func (db *Database[T]) Update(name, id string, rec T) error {
	if rec.RecordID() != id {
		return fmt.Errorf("%w: %s != %s", ErrIDMismatch, rec.RecordID(), id)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return nil
	}
	prev, ok := t.rows[id]
	if !ok {
		return nil
	}

	t.rows[id] = rec
	if err := db.flush(); err != nil {
		t.rows[id] = prev
		return err
	}
	return nil
}

// Delete removes the record stored under id. Missing ids are a no-op.
func (db *Database[T]) Delete(name, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tables[name]
	if !ok {
		return nil
	}
	prev, ok := t.rows[id]
	if !ok {
		return nil
	}

	i := t.indexOf(id)
	prevOrder := append([]string(nil), t.order...)
	t.order = append(t.order[:i], t.order[i+1:]...)
	delete(t.rows, id)

	if err := db.flush(); err != nil {
		t.order = prevOrder
		t.rows[id] = prev
		return err
	}
	return nil
}

// flush must be called with db.mu held for writing.
func (db *Database[T]) flush() error {
	start := time.Now()
	err := db.writeFile()
	flushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		flushErrors.Inc()
		return fmt.Errorf("store: write %s: %w", db.path, err)
	}
	return nil
}

func (db *Database[T]) snapshot() map[string][]T {
	out := make(map[string][]T, len(db.tables))
	for name, t := range db.tables {
		recs := make([]T, 0, len(t.order))
		for _, id := range t.order {
			recs = append(recs, t.rows[id])
		}
		out[name] = recs
	}
	return out
}

// writeFile replaces the backing file through a temp file in the same
// directory so a crash mid-write leaves the previous contents intact.
func (db *Database[T]) writeFile() error {
	data, err := json.MarshalIndent(db.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	dir, base := filepath.Split(db.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, db.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
