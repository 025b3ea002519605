package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/basicai/pceditor/internal/model"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDSN(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("db.host", "db.internal")
	viper.Set("db.port", "6543")
	viper.Set("db.username", "annot")
	viper.Set("db.password", "pw")
	viper.Set("db.database", "results")

	assert.Equal(t, "host=db.internal port=6543 user=annot password=pw dbname=results sslmode=disable", PostgresDSN())

	viper.Set("db.sslmode", "require")
	assert.Contains(t, PostgresDSN(), "sslmode=require")
}

func TestSetup_CreatesTablesOnce(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)

	require.NoError(t, Setup(db))
	require.NoError(t, Setup(db))

	for _, m := range model.DatabaseModels {
		assert.True(t, db.Migrator().HasTable(m))
	}
	var count int64
	require.NoError(t, db.Model(&model.EditorInfo{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpMemoryDBToDisk(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	require.NoError(t, Setup(db))
	require.NoError(t, db.Create(&model.Track{TrackID: "t1", TrackName: "1"}).Error)

	path := filepath.Join(t.TempDir(), "nested", "results.db")
	require.NoError(t, DumpMemoryDBToDisk(db, path))
	// a second dump replaces the file
	require.NoError(t, DumpMemoryDBToDisk(db, path))

	_, err = os.Stat(path)
	require.NoError(t, err)

	m := NewManager(zerolog.Nop())
	require.NoError(t, m.OpenSqlite(path))
	defer m.Close()
	assert.True(t, m.IsValid)
	assert.True(t, m.ShouldSaveLocal)

	var track model.Track
	require.NoError(t, m.DB.First(&track, "track_id = ?", "t1").Error)
	assert.Equal(t, "1", track.TrackName)
}

func TestDumpMemoryDBToDisk_NoPath(t *testing.T) {
	db, err := GetSqliteDBStandalone("")
	require.NoError(t, err)
	assert.Error(t, DumpMemoryDBToDisk(db, ""))
}

func TestGetBackupDBPaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.db"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.db"), 0755))

	paths, err := GetBackupDBPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.db")}, paths)
}
