package reliability

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sorceryai/conjure/internal/database"
)

func TestMaintenanceJob(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Conn().Exec("CREATE TABLE t (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	job := NewMaintenanceJob([]*database.DB{db}, zerolog.Nop())
	assert.Equal(t, "db_maintenance", job.Name())
	require.NoError(t, job.Run())
}

func TestMaintenanceJobFailsOnClosedDatabase(t *testing.T) {
	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	job := NewMaintenanceJob([]*database.DB{db}, zerolog.Nop())
	assert.Error(t, job.Run())
}
