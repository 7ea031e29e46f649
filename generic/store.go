/*
store.go - The persistent store: one artifact, one in-memory snapshot

PURPOSE:
  Owns the single backing artifact and the single authoritative in-memory
  copy of it. Repositories never touch the artifact; they ask the Store for
  read access (view) or a mutation (mutate), and the Store decides when the
  whole document is rewritten.

LOAD CONTRACT:
  - First access reads and parses the artifact; afterwards the parsed
    snapshot is reused for the life of the Store (memoized).
  - Missing artifact: ErrNotInitialized. The store never creates an empty
    one, because that would hide a missing seed.
  - Malformed document, metadata, or registered collection: ErrCorruptState.
  - Top-level keys no repository registered are kept verbatim and written
    back unchanged.

SAVE CONTRACT:
  - Every successful mutation rewrites the complete document. There is no
    partial or incremental write.
  - metadata.last_updated is stamped before serializing and always moves
    forward.
  - On failure the mutation's undo runs, last_updated is restored, and the
    caller gets a *PersistError. Memory and disk agree again (eager rollback).

CONCURRENCY:
  One writer at a time inside the process (mutex). Across processes the
  Backend compares revisions on write and refuses to overwrite an artifact
  someone else changed (ErrConcurrentModification). Reload picks up the
  other writer's document. Multi-process use is a hazard to be reported,
  not a supported mode.

SCALING NOTE:
  Each write costs O(total document size). That is the accepted ceiling of
  this design; moving to incremental persistence is a different store.

SEE ALSO:
  - store/file.go, store/memory.go: Backend implementations
  - ../store/sqlite: SQLite Backend
  - repository.go: Collection-level operations built on mutate/view
*/
package generic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// BACKEND - Where the artifact lives
// =============================================================================

// Revision fingerprints the artifact as this process last saw it.
type Revision string

// Backend reads and replaces the whole artifact.
type Backend interface {
	// Read returns the full artifact. Returns ErrNotInitialized when it does
	// not exist.
	Read(ctx context.Context) ([]byte, Revision, error)

	// Write atomically replaces the artifact with data. If the artifact's
	// current revision is not expect, nothing is written and the error wraps
	// ErrConcurrentModification.
	Write(ctx context.Context, data []byte, expect Revision) (Revision, error)
}

// =============================================================================
// METADATA - The root document's bookkeeping block
// =============================================================================

// Metadata is stored under the "metadata" key of the artifact.
type Metadata struct {
	CreatedAt   time.Time `json:"created_at"`
	Version     string    `json:"version"`
	LastUpdated time.Time `json:"last_updated"`
}

const metadataKey = "metadata"

// collection is the store's view of a registered repository.
type collection interface {
	collectionName() string
	decode(raw json.RawMessage) error
	encode() (json.RawMessage, error)
	size() int
}

// =============================================================================
// STORE
// =============================================================================

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for stamps and last_updated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store holds the in-memory snapshot of one artifact.
type Store struct {
	mu      sync.Mutex
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	collections map[string]collection
	names       []string // registration order
	decoded     map[string]bool

	loaded    bool
	meta      Metadata
	extra     map[string]json.RawMessage // top-level keys no repository owns
	revision  Revision
	persisted []byte // last document read from or written to the backend
}

// NewStore creates a store over backend. Nothing is read until first use.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:     backend,
		logger:      zap.NewNop(),
		now:         time.Now,
		collections: make(map[string]collection),
		decoded:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) register(c collection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := c.collectionName()
	if name == "" || name == metadataKey {
		panic(fmt.Sprintf("generic: invalid collection name %q", name))
	}
	if _, dup := s.collections[name]; dup {
		panic(fmt.Sprintf("generic: collection %q registered twice", name))
	}
	s.collections[name] = c
	s.names = append(s.names, name)
}

// clock returns the current time in UTC without a monotonic reading, so
// stamped values survive a JSON round trip unchanged.
func (s *Store) clock() time.Time {
	return s.now().UTC()
}

// Now returns the store's current time (UTC). Domain code uses it for
// timestamps it sets itself, such as a decision time.
func (s *Store) Now() time.Time { return s.clock() }

// Load reads the artifact if this store has not done so yet. Every other
// method calls it implicitly; calling it directly lets a program fail fast
// at startup.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx)
}

// Reload drops the memoized snapshot and reads the artifact again. It is
// how a caller recovers after ErrConcurrentModification: the other
// writer's changes become visible and later saves compare against the new
// revision. If the read fails, the store stays unloaded and every later
// call retries it.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
	clear(s.decoded)
	s.logger.Debug("reloading artifact")
	return s.loadLocked(ctx)
}

func (s *Store) loadLocked(ctx context.Context) error {
	if !s.loaded {
		data, rev, err := s.backend.Read(ctx)
		if err != nil {
			if errors.Is(err, ErrNotInitialized) {
				s.logger.Warn("backing artifact missing; seed the store before use")
				return err
			}
			return fmt.Errorf("read artifact: %w", err)
		}
		doc, meta, err := parseDocument(data)
		if err != nil {
			s.logger.Error("backing artifact is corrupt", zap.Error(err))
			return err
		}
		s.extra = doc
		s.meta = meta
		s.revision = rev
		s.persisted = bytes.Clone(data)
		s.loaded = true
		s.logger.Debug("artifact loaded",
			zap.Int("bytes", len(data)),
			zap.String("revision", string(rev)),
			zap.Int("top_level_keys", len(doc)),
		)
	}

	// Collections registered after the first read are decoded on next use.
	for _, name := range s.names {
		if s.decoded[name] {
			continue
		}
		if err := s.collections[name].decode(s.extra[name]); err != nil {
			cerr := &CorruptStateError{Collection: name, Err: err}
			s.logger.Error("backing artifact is corrupt", zap.Error(cerr))
			return cerr
		}
		delete(s.extra, name)
		s.decoded[name] = true
	}
	return nil
}

func parseDocument(data []byte) (map[string]json.RawMessage, Metadata, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, Metadata{}, &CorruptStateError{Err: err}
	}
	if doc == nil {
		return nil, Metadata{}, &CorruptStateError{Err: errors.New("document is null")}
	}
	raw, ok := doc[metadataKey]
	if !ok {
		return nil, Metadata{}, &CorruptStateError{Collection: metadataKey, Err: errors.New("missing")}
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, Metadata{}, &CorruptStateError{Collection: metadataKey, Err: err}
	}
	delete(doc, metadataKey)
	return doc, meta, nil
}

// view runs fn with the snapshot loaded and no writer active.
func (s *Store) view(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	return fn()
}

// mutate runs fn against the loaded snapshot. fn returns an undo closure
// when it changed something (nil means nothing changed and nothing is
// written). A failed save runs undo before returning the *PersistError.
func (s *Store) mutate(ctx context.Context, fn func() (undo func(), err error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	undo, err := fn()
	if err != nil {
		return err
	}
	if undo == nil {
		return nil
	}
	if err := s.persistLocked(ctx); err != nil {
		undo()
		return err
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	start := time.Now()
	prev := s.meta.LastUpdated

	stamp := s.clock()
	if !stamp.After(prev) {
		stamp = prev.Add(time.Microsecond)
	}
	s.meta.LastUpdated = stamp

	data, err := s.encodeLocked()
	if err != nil {
		s.meta.LastUpdated = prev
		s.logger.Error("encode artifact", zap.Error(err))
		return &PersistError{Err: err}
	}

	rev, err := s.backend.Write(ctx, data, s.revision)
	if err != nil {
		s.meta.LastUpdated = prev
		s.logger.Error("persist failed; change rolled back",
			zap.Error(err),
			zap.Int("bytes", len(data)),
		)
		return &PersistError{Err: err}
	}

	s.revision = rev
	s.persisted = data
	s.logger.Debug("artifact saved",
		zap.Int("bytes", len(data)),
		zap.String("revision", string(rev)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (s *Store) encodeLocked() ([]byte, error) {
	doc := make(map[string]json.RawMessage, len(s.extra)+len(s.names)+1)
	for k, v := range s.extra {
		doc[k] = v
	}
	for _, name := range s.names {
		raw, err := s.collections[name].encode()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		doc[name] = raw
	}
	meta, err := json.Marshal(s.meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	doc[metadataKey] = meta

	// map keys marshal sorted, so the output is stable.
	return json.MarshalIndent(doc, "", "  ")
}

// =============================================================================
// READ-ONLY ACCESSORS
// =============================================================================

// Metadata returns the current metadata block.
func (s *Store) Metadata(ctx context.Context) (Metadata, error) {
	var meta Metadata
	err := s.view(ctx, func() error {
		meta = s.meta
		return nil
	})
	return meta, err
}

// Snapshot returns a copy of the document as last persisted (or as loaded,
// if nothing was written yet). It is the export used for backups and never
// contains a mutation whose save did not complete.
func (s *Store) Snapshot(ctx context.Context) ([]byte, error) {
	var out []byte
	err := s.view(ctx, func() error {
		out = bytes.Clone(s.persisted)
		return nil
	})
	return out, err
}

// Counts returns the number of records per registered collection.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	err := s.view(ctx, func() error {
		for _, name := range s.names {
			counts[name] = s.collections[name].size()
		}
		return nil
	})
	return counts, err
}

// Collections returns registered collection names in registration order.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}
