package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphabot-ai/bloglist/internal/store"
	"github.com/alphabot-ai/bloglist/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	st, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStoreSuite(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestMigrationsIdempotent(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, applySchema(st.db))

	var version int
	require.NoError(t, st.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, len(migrations), version)
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, "blogs.db?_pragma=foreign_keys(1)", withForeignKeys("blogs.db"))
	assert.Equal(t, "file:x?mode=memory&_pragma=foreign_keys(1)", withForeignKeys("file:x?mode=memory"))
	assert.Equal(t, "x?_pragma=foreign_keys(1)", withForeignKeys("x?_pragma=foreign_keys(1)"))
}

func TestForeignKeysOnEveryConnection(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	// Hold several connections open at once so the pool has to create new ones.
	var conns []*sql.Conn
	for range 3 {
		conn, err := st.db.Conn(ctx)
		require.NoError(t, err)
		conns = append(conns, conn)
	}
	for _, conn := range conns {
		var enabled int
		require.NoError(t, conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&enabled))
		assert.Equal(t, 1, enabled)
		require.NoError(t, conn.Close())
	}
}
