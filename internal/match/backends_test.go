package match_test

import (
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/sirdesai22/padel-score/internal/db"
	"github.com/sirdesai22/padel-score/internal/match"
	"github.com/sirdesai22/padel-score/internal/storage"
	"github.com/sirdesai22/padel-score/internal/storage/gormstore"
	"github.com/sirdesai22/padel-score/internal/storage/memory"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// backends lists every store the service runs on in production or locally.
var backends = map[string]func(t *testing.T) storage.Store{
	"memory": func(t *testing.T) storage.Store { return memory.New() },
	"gorm":   newGormStore,
}

// newGormStore migrates a fresh SQLite file. One connection keeps concurrent
// writers from tripping over SQLite's database lock.
func newGormStore(t *testing.T) storage.Store {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "match.db")), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gormstore.New(gdb)
}

// eachBackend runs fn once per store.
func eachBackend(t *testing.T, fn func(t *testing.T, svc *match.Service)) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			fn(t, match.NewService(newStore(t)))
		})
	}
}
