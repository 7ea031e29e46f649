// Package store provides Backend implementations.
package store

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/warp/hrstore/generic"
)

// =============================================================================
// MEMORY BACKEND - In-memory artifact (for testing/dev)
// =============================================================================

// Memory keeps the artifact in a byte slice. It can be told to fail writes
// and can simulate another process rewriting the artifact.
type Memory struct {
	mu        sync.RWMutex
	data      []byte
	revision  int64
	writes    int
	failWrite error
}

// NewMemory returns a backend holding data. nil data means the artifact
// does not exist yet (reads return generic.ErrNotInitialized).
func NewMemory(data []byte) *Memory {
	m := &Memory{}
	if data != nil {
		m.data = bytes.Clone(data)
		m.revision = 1
	}
	return m
}

func (m *Memory) Read(_ context.Context) ([]byte, generic.Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return nil, "", generic.ErrNotInitialized
	}
	return bytes.Clone(m.data), m.rev(), nil
}

func (m *Memory) Write(_ context.Context, data []byte, expect generic.Revision) (generic.Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrite != nil {
		return "", m.failWrite
	}
	if m.data != nil && expect != m.rev() {
		return "", fmt.Errorf("memory artifact at revision %s, expected %s: %w",
			m.rev(), expect, generic.ErrConcurrentModification)
	}
	m.data = bytes.Clone(data)
	m.revision++
	m.writes++
	return m.rev(), nil
}

func (m *Memory) rev() generic.Revision {
	return generic.Revision(strconv.FormatInt(m.revision, 10))
}

// FailWrites makes every following Write return err. nil restores writes.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = err
}

// Writes returns the number of successful writes.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Bytes returns a copy of the current artifact.
func (m *Memory) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return bytes.Clone(m.data)
}

// Tamper replaces the artifact as another writer would.
func (m *Memory) Tamper(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = bytes.Clone(data)
	m.revision++
}
