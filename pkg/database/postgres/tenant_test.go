package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-auth/gatehouse/pkg/database"
)

// testPoolManager builds a manager over pre-opened pools so the session
// variable traffic can be asserted with sqlmock.
func testPoolManager(root, app *sql.DB) *PoolManager {
	pm := &PoolManager{}
	pm.rootOnce.Do(func() { pm.root = root })
	pm.appOnce.Do(func() { pm.app = app })
	return pm
}

func newMockProvider(t *testing.T) (*Provider, sqlmock.Sqlmock, sqlmock.Sqlmock) {
	t.Helper()
	rootDB, rootMock, err := sqlmock.New()
	require.NoError(t, err)
	appDB, appMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		rootDB.Close()
		appDB.Close()
	})
	return NewProvider(testPoolManager(rootDB, appDB), nil), rootMock, appMock
}

func TestScopedHandleBindsSessionVariable(t *testing.T) {
	provider, _, appMock := newMockProvider(t)
	ctx := context.Background()

	// set_config runs once, on the first statement; the second statement
	// reuses the pinned connection without re-binding.
	appMock.ExpectExec(`SELECT set_config\(\$1, \$2, false\)`).
		WithArgs(orgSetting, "org-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	appMock.ExpectExec(`UPDATE users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	appMock.ExpectExec(`DELETE FROM users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	appMock.ExpectExec(`SELECT set_config\(\$1, '', false\)`).
		WithArgs(orgSetting).
		WillReturnResult(sqlmock.NewResult(0, 0))

	handle := provider.Open("org-a")
	_, err := handle.ExecContext(ctx, "UPDATE users SET identity_provider = 'x'")
	require.NoError(t, err)
	_, err = handle.ExecContext(ctx, "DELETE FROM users")
	require.NoError(t, err)
	require.NoError(t, handle.Close())

	require.NoError(t, appMock.ExpectationsWereMet())
}

func TestRootHandleBindsNothing(t *testing.T) {
	provider, rootMock, appMock := newMockProvider(t)

	rootMock.ExpectExec(`DELETE FROM users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handle := provider.Open("")
	assert.True(t, handle.IsRoot())
	assert.Empty(t, handle.OrgID())

	_, err := handle.ExecContext(context.Background(), "DELETE FROM users")
	require.NoError(t, err)
	require.NoError(t, handle.Close())

	require.NoError(t, rootMock.ExpectationsWereMet())
	require.NoError(t, appMock.ExpectationsWereMet())
}

func TestUpgradeToRootRequiresReason(t *testing.T) {
	provider, _, _ := newMockProvider(t)

	handle := provider.Open("org-a")
	_, err := handle.UpgradeToRoot(context.Background(), "")
	assert.ErrorIs(t, err, database.ErrEmptyReason)
}

func TestUpgradeToRootKeepsReceiverScope(t *testing.T) {
	provider, _, _ := newMockProvider(t)

	handle := provider.Open("org-a")
	upgraded, err := handle.UpgradeToRoot(context.Background(), "cross-tenant identity lookup")
	require.NoError(t, err)

	assert.True(t, upgraded.IsRoot())
	assert.False(t, handle.IsRoot())
	assert.Equal(t, "org-a", handle.OrgID())
}

func TestClosedHandleRejectsStatements(t *testing.T) {
	provider, _, _ := newMockProvider(t)

	handle := provider.Open("org-a")
	require.NoError(t, handle.Close())

	_, err := handle.ExecContext(context.Background(), "DELETE FROM users")
	assert.ErrorIs(t, err, database.ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	provider, _, _ := newMockProvider(t)

	handle := provider.Open("org-a")
	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())
}

func TestTxRollsBackOnError(t *testing.T) {
	provider, _, appMock := newMockProvider(t)
	ctx := context.Background()

	appMock.ExpectExec(`SELECT set_config\(\$1, \$2, false\)`).
		WithArgs(orgSetting, "org-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	appMock.ExpectBegin()
	appMock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	appMock.ExpectRollback()

	handle := provider.Open("org-a")
	failure := fmt.Errorf("property write failed")
	err := handle.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO users (id) VALUES ('u1')"); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	require.NoError(t, appMock.ExpectationsWereMet())
}

func TestTxCommits(t *testing.T) {
	provider, _, appMock := newMockProvider(t)
	ctx := context.Background()

	appMock.ExpectExec(`SELECT set_config\(\$1, \$2, false\)`).
		WithArgs(orgSetting, "org-a").
		WillReturnResult(sqlmock.NewResult(0, 0))
	appMock.ExpectBegin()
	appMock.ExpectExec(`INSERT INTO users`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	appMock.ExpectCommit()

	handle := provider.Open("org-a")
	err := handle.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO users (id) VALUES ('u1')")
		return err
	})
	require.NoError(t, err)

	require.NoError(t, appMock.ExpectationsWereMet())
}

func TestPoolManagerRequiresDSN(t *testing.T) {
	pm := NewPoolManager(PoolConfig{})
	_, err := pm.Root(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no DSN configured")
}
