package store

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MutationResult reports whether an upsert created a new record or
// updated an existing one.
type MutationResult int

const (
	Created MutationResult = iota
	Updated
)

func (m MutationResult) String() string {
	if m == Created {
		return "created"
	}
	return "updated"
}

// ErrNotFound is returned by Delete when the name is absent.
var ErrNotFound = fmt.Errorf("record not found")

// ErrIO wraps a backing-file read/write failure so callers can
// distinguish it from a validation error without string-matching.
var ErrIO = fmt.Errorf("backing file io error")

// Store is the shared, mutable record index. A single readers-writer
// lock guards the map: Lookup and List take the read lock and may run
// in parallel; Upsert, Delete, and Persist take the write lock and
// serialise against everything else, including each other. Persist runs
// while the write lock is held so the on-disk state always matches a
// specific, coherent in-memory state (see the durability contract this
// module upholds for the control API).
type Store struct {
	mu      sync.RWMutex
	records map[string]Record
	log     *zap.Logger
}

// New creates an empty store.
func New(log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		records: make(map[string]Record),
		log:     log,
	}
}

// LoadFromFile populates the store from the backing file at path. It is
// tolerant of malformed lines: each bad line is skipped and logged
// rather than aborting the whole load. A missing file is treated as an
// empty store, since startup must succeed against a backing file that
// has not been created yet.
func (s *Store) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening backing file: %w", err)
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	loaded := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseLine(line)
		if err != nil {
			s.log.Warn("skipping malformed backing file line",
				zap.String("path", path),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}
		s.records[rec.Name] = rec
		loaded++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanning backing file: %w", err)
	}

	s.log.Info("loaded backing file", zap.String("path", path), zap.Int("records", loaded))
	return nil
}

// Lookup returns the record stored under name's canonical form.
func (s *Store) Lookup(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[Canonicalize(name)]
	return r, ok
}

// List returns a snapshot of every record, sorted by name for stable
// output from the control API.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len reports the number of records currently held, for the
// active-records gauge.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Upsert validates and stores a record, reporting whether it was newly
// created or replaced an existing entry. A duplicate upsert of an
// identical record succeeds idempotently and reports Updated.
func (s *Store) Upsert(r Record) (MutationResult, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.records[r.Name]
	s.records[r.Name] = r
	if existed {
		return Updated, nil
	}
	return Created, nil
}

// Delete removes the record stored under name's canonical form.
func (s *Store) Delete(name string) error {
	name = Canonicalize(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[name]; !ok {
		return ErrNotFound
	}
	delete(s.records, name)
	return nil
}

// Persist rewrites the backing file with the current in-memory state.
// It writes to a temp file in the same directory and renames into
// place, so a crash mid-write leaves either the old file or the new
// file fully readable, never a torn one. Persist takes the write lock
// itself, so it is a separate step from a preceding Upsert or Delete;
// callers that need the "API response implies durable" guarantee use
// UpsertAndPersist/DeleteAndPersist instead, as the control API (see
// internal/api) does.
func (s *Store) Persist(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(path)
}

func (s *Store) persistLocked(path string) error {
	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".authdnsd-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	w := bufio.NewWriter(tmp)
	for _, name := range names {
		if _, err := fmt.Fprintln(w, s.records[name].toLine()); err != nil {
			tmp.Close()
			return fmt.Errorf("writing temp file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flushing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file into place: %w", err)
	}
	return nil
}

// UpsertAndPersist performs an Upsert and, on success, a Persist under
// the same write-lock acquisition, so the write-ahead discipline in the
// store's concurrency contract always holds: the file on disk never
// observes a state the in-memory map didn't also commit to.
func (s *Store) UpsertAndPersist(r Record, path string) (MutationResult, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.records[r.Name]
	s.records[r.Name] = r
	if err := s.persistLocked(path); err != nil {
		// Roll back the in-memory mutation: persistence failing must
		// not leave the store ahead of disk.
		if existed {
			s.records[r.Name] = old
		} else {
			delete(s.records, r.Name)
		}
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	if existed {
		return Updated, nil
	}
	return Created, nil
}

// DeleteAndPersist performs a Delete and, on success, a Persist under
// the same write-lock acquisition.
func (s *Store) DeleteAndPersist(name, path string) error {
	name = Canonicalize(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[name]
	if !ok {
		return ErrNotFound
	}
	delete(s.records, name)
	if err := s.persistLocked(path); err != nil {
		s.records[name] = rec
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
