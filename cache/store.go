// Package cache implements a persistent, cross-invocation memo of template
// instantiation verdicts, backed by SQLite through GORM. sym.InstantiationCache
// already gives one compilation process never-invalidated in-memory memoization
// (§3.3); Store extends that guarantee across separate compiler invocations
// against an unchanged --cache-dir, so a rebuild of the same translation unit
// can skip straight past overload resolution and instantiation-depth checking
// for a pattern/argument combination it has already verified.
//
// A class template's instantiated type lives in that run's own typetab.Table
// and has no meaningful identity outside it, so Store never persists a
// typetab.Index. What survives a process boundary is the mangled symbol name
// a function template instantiation settled on, and whether an instantiation
// failed and why — both are plain strings, stable by construction.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oxhq/flashcpp/sym"
)

// RunID identifies one compiler invocation. Every Entry a Store writes during
// a run carries that run's RunID, so a `--cache-dir` inspection tool can group
// rows by the build that produced them.
type RunID string

// NewRunID mints a fresh identifier for the current process.
func NewRunID() RunID {
	return RunID(uuid.NewString())
}

// Entry is one persisted instantiation verdict, keyed by the digest
// sym.InstantiationKey.Digest() computes for the template pattern plus its
// argument vector.
type Entry struct {
	Digest      string         `gorm:"primaryKey;type:varchar(200)"`
	RunID       string         `gorm:"type:varchar(36);index"`
	ArgsJSON    datatypes.JSON `gorm:"type:jsonb"`
	FuncMangled string         `gorm:"type:text"`
	Failed      bool           `gorm:"default:false"`
	FailMessage string         `gorm:"type:text"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

func (Entry) TableName() string { return "instantiations" }

// argSnapshot is what ArgsJSON records: the human-readable argument shape of
// the key that produced this row, useful for a `--cache-dir` dump tool, not
// consulted by Lookup itself (the Digest column alone is the lookup key).
type argSnapshot struct {
	TypeArgs    []uint32 `json:"type_args,omitempty"`
	NonTypeArgs []int64  `json:"non_type_args,omitempty"`
}

// Store is a SQLite-backed instantiation memo living at <dir>/instantiations.db.
type Store struct {
	db  *gorm.DB
	run RunID
}

// Open connects to (creating if absent) the cache database under dir and
// migrates its schema. Every entry written through the returned Store is
// stamped with a fresh RunID.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, "instantiations.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("cache: migrate schema: %w", err)
	}
	return &Store{db: db, run: NewRunID()}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RunID reports the identifier stamped onto every row this Store writes.
func (s *Store) RunID() RunID { return s.run }

// Lookup returns the previously recorded verdict for digest, from this run
// or any prior one sharing this cache directory.
func (s *Store) Lookup(digest string) (Entry, bool) {
	var e Entry
	err := s.db.First(&e, "digest = ?", digest).Error
	return e, err == nil
}

// Put records key's verdict, tagged with this run's RunID. A digest already
// present keeps its original row (first writer wins, mirroring
// sym.InstantiationCache.Store's append-once semantics) so re-deriving the
// same instantiation twice in one run never clobbers the first verdict.
func (s *Store) Put(key sym.InstantiationKey, result sym.InstantiationResult) error {
	if _, ok := s.Lookup(key.Digest()); ok {
		return nil
	}
	snap := argSnapshot{NonTypeArgs: key.NonTypeArgs}
	for _, t := range key.TypeArgs {
		snap.TypeArgs = append(snap.TypeArgs, uint32(t))
	}
	argsJSON, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: marshal args: %w", err)
	}
	e := Entry{
		Digest:      key.Digest(),
		RunID:       string(s.run),
		ArgsJSON:    datatypes.JSON(argsJSON),
		FuncMangled: result.FuncMangled,
		Failed:      result.Failed,
		FailMessage: result.FailMessage,
	}
	return s.db.Create(&e).Error
}

// Result reconstructs the portable half of a sym.InstantiationResult this row
// can stand in for. ClassType is never populated: a class instantiation's
// typetab.Index belongs to a Table this process doesn't own, so a cache hit
// on a class-template entry only tells the caller it will succeed or fail,
// not what to skip — the caller still has to re-run typetab registration.
func (e Entry) Result() sym.InstantiationResult {
	return sym.InstantiationResult{
		FuncMangled: e.FuncMangled,
		Failed:      e.Failed,
		FailMessage: e.FailMessage,
	}
}

// HydrateInto seeds cache with every row this Store holds, from this run or
// any prior one, so a fresh sym.InstantiationCache starts a build already
// knowing every instantiation verdict --cache-dir has recorded.
func (s *Store) HydrateInto(cache *sym.InstantiationCache) error {
	var rows []Entry
	if err := s.db.Find(&rows).Error; err != nil {
		return fmt.Errorf("cache: load entries: %w", err)
	}
	for _, e := range rows {
		cache.Preload(e.Digest, e.Result())
	}
	return nil
}

// Flush persists every entry cache holds that this Store doesn't already
// have on disk. Call it once at the end of a compilation run so verdicts
// this process derived survive for the next invocation against the same
// --cache-dir.
func (s *Store) Flush(cache *sym.InstantiationCache) error {
	for digest, result := range cache.Entries() {
		if _, ok := s.Lookup(digest); ok {
			continue
		}
		if err := s.putDigest(digest, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) putDigest(digest string, result sym.InstantiationResult) error {
	e := Entry{
		Digest:      digest,
		RunID:       string(s.run),
		FuncMangled: result.FuncMangled,
		Failed:      result.Failed,
		FailMessage: result.FailMessage,
	}
	return s.db.Create(&e).Error
}
