package store

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertCreatesThenUpdates(t *testing.T) {
	s := New(nil)

	result, err := s.Upsert(Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"})
	require.NoError(t, err)
	assert.Equal(t, Created, result)

	result, err = s.Upsert(Record{Name: "a.test", IP: "9.9.9.9", TTL: 300, RecordType: "A"})
	require.NoError(t, err)
	assert.Equal(t, Updated, result)

	rec, ok := s.Lookup("a.test")
	require.True(t, ok)
	assert.Equal(t, "9.9.9.9", rec.IP)
}

func TestUpsertIsIdempotent(t *testing.T) {
	s := New(nil)
	rec := Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"}

	_, err := s.Upsert(rec)
	require.NoError(t, err)
	result, err := s.Upsert(rec)
	require.NoError(t, err)
	assert.Equal(t, Updated, result)
}

func TestUpsertValidation(t *testing.T) {
	s := New(nil)

	_, err := s.Upsert(Record{Name: "", IP: "1.2.3.4", TTL: 300, RecordType: "A"})
	assert.Error(t, err)

	_, err = s.Upsert(Record{Name: "a.test", IP: "not-an-ip", TTL: 300, RecordType: "A"})
	assert.Error(t, err)

	_, err = s.Upsert(Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "BOGUS"})
	assert.Error(t, err)
}

func TestLookupCanonicalizesName(t *testing.T) {
	s := New(nil)
	_, err := s.Upsert(Record{Name: "WWW.Example.COM.", IP: "1.2.3.4", TTL: 300, RecordType: "A"})
	require.NoError(t, err)

	rec, ok := s.Lookup("www.example.com")
	require.True(t, ok)
	assert.Equal(t, "www.example.com", rec.Name)
}

func TestDeleteNotFound(t *testing.T) {
	s := New(nil)
	err := s.Delete("missing.test")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := New(nil)
	_, err := s.Upsert(Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"})
	require.NoError(t, err)

	require.NoError(t, s.Delete("a.test"))

	_, ok := s.Lookup("a.test")
	assert.False(t, ok)
}

func TestListIsSortedSnapshot(t *testing.T) {
	s := New(nil)
	_, err := s.Upsert(Record{Name: "b.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"})
	require.NoError(t, err)
	_, err = s.Upsert(Record{Name: "a.test", IP: "1.2.3.5", TTL: 300, RecordType: "A"})
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a.test", list[0].Name)
	assert.Equal(t, "b.test", list[1].Name)
}

func TestPersistThenLoadFromFileRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.txt")

	s := New(nil)
	rec := Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A", Class: "IN"}
	_, err := s.Upsert(rec)
	require.NoError(t, err)
	require.NoError(t, s.Persist(path))

	reloaded := New(nil)
	require.NoError(t, reloaded.LoadFromFile(path))

	got, ok := reloaded.Lookup("a.test")
	require.True(t, ok)
	assert.Equal(t, rec.Name, got.Name)
	assert.Equal(t, rec.IP, got.IP)
	assert.Equal(t, rec.TTL, got.TTL)
	assert.Equal(t, rec.RecordType, got.RecordType)
	assert.Equal(t, rec.Class, got.Class)
}

func TestLoadFromFileSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.txt")

	content := "# a comment\n\ngood.test:1.2.3.4:300:A:IN\nnot-enough-fields\nbad.test:1.2.3.4:not-a-number:A:IN\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := New(nil)
	require.NoError(t, s.LoadFromFile(path))

	assert.Equal(t, 1, s.Len())
	_, ok := s.Lookup("good.test")
	assert.True(t, ok)
}

func TestLoadFromFileMissingFileIsEmptyStore(t *testing.T) {
	s := New(nil)
	require.NoError(t, s.LoadFromFile(filepath.Join(t.TempDir(), "does-not-exist.txt")))
	assert.Equal(t, 0, s.Len())
}

func TestPersistWritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.txt")

	s := New(nil)
	_, err := s.Upsert(Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"})
	require.NoError(t, err)
	require.NoError(t, s.Persist(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp file should remain after a successful persist")
}

// Concurrent upsert of the same name from N goroutines must leave the
// store holding exactly one of the N inputs, with no torn writes.
func TestConcurrentUpsertSameName(t *testing.T) {
	s := New(nil)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = s.Upsert(Record{
				Name:       "race.test",
				IP:         "1.2.3.4",
				TTL:        uint32(i),
				RecordType: "A",
			})
		}(i)
	}
	wg.Wait()

	rec, ok := s.Lookup("race.test")
	require.True(t, ok)
	assert.True(t, rec.TTL < n)
}

func TestUpsertAndPersistAndDeleteAndPersist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.txt")

	s := New(nil)
	_, err := s.UpsertAndPersist(Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"}, path)
	require.NoError(t, err)

	reloaded := New(nil)
	require.NoError(t, reloaded.LoadFromFile(path))
	_, ok := reloaded.Lookup("a.test")
	assert.True(t, ok)

	require.NoError(t, s.DeleteAndPersist("a.test", path))

	reloaded = New(nil)
	require.NoError(t, reloaded.LoadFromFile(path))
	assert.Equal(t, 0, reloaded.Len())
}

func TestUpsertAndPersistRollsBackUpdateOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.txt")

	s := New(nil)
	_, err := s.UpsertAndPersist(Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A"}, path)
	require.NoError(t, err)

	// Remove the backing directory so the next persist's temp-file
	// creation fails, simulating a disk I/O failure on an update.
	require.NoError(t, os.RemoveAll(dir))

	_, err = s.UpsertAndPersist(Record{Name: "a.test", IP: "9.9.9.9", TTL: 300, RecordType: "A"}, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIO))

	got, ok := s.Lookup("a.test")
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", got.IP, "in-memory record must roll back to the pre-update value on persist failure")
}

func TestRecordToAnswerRejectsTypeMismatch(t *testing.T) {
	rec := Record{Name: "a.test", IP: "1.2.3.4", TTL: 300, RecordType: "A", Class: "IN"}

	_, ok := rec.ToAnswer(28) // AAAA
	assert.False(t, ok, "querying AAAA against a stored A record must not answer")

	ans, ok := rec.ToAnswer(1) // A
	require.True(t, ok)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, ans.IP)
}

func TestRecordToAnswerRejectsNonARecordTypes(t *testing.T) {
	rec := Record{Name: "a.test", IP: "", Value: "mail.a.test", TTL: 300, RecordType: "MX", Class: "IN"}
	_, ok := rec.ToAnswer(15) // MX
	assert.False(t, ok, "v1's codec only encodes A RDATA")
}
