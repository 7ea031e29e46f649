package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hrstore/generic"
	"github.com/warp/hrstore/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRead_EmptyDatabaseIsNotInitialized(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Read(context.Background())
	assert.True(t, errors.Is(err, generic.ErrNotInitialized))
}

func TestWrite_BumpsRevision(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Seed(ctx, []byte(`{"metadata": {}}`)))

	doc, rev, err := s.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata": {}}`, string(doc))
	assert.Equal(t, generic.Revision("1"), rev)

	next, err := s.Write(ctx, []byte(`{"metadata": {}, "users": []}`), rev)
	require.NoError(t, err)
	assert.Equal(t, generic.Revision("2"), next)

	doc, rev, err = s.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata": {}, "users": []}`, string(doc))
	assert.Equal(t, next, rev)
}

func TestWrite_StaleRevisionRejected(t *testing.T) {
	// GIVEN: Two writers that both read revision 1
	// WHEN: Both write
	// THEN: The second one is refused

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Seed(ctx, []byte(`{}`)))
	_, rev, err := s.Read(ctx)
	require.NoError(t, err)

	_, err = s.Write(ctx, []byte(`{"first": true}`), rev)
	require.NoError(t, err)

	_, err = s.Write(ctx, []byte(`{"second": true}`), rev)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	doc, _, err := s.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"first": true}`, string(doc))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hr.db")

	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.Seed(ctx, []byte(`{"metadata": {"version": "1.0"}}`)))
	require.NoError(t, s.Close())

	reopened, err := sqlite.New(path)
	require.NoError(t, err)
	defer reopened.Close()

	doc, _, err := reopened.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"metadata": {"version": "1.0"}}`, string(doc))
}
