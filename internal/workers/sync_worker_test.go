package workers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/db"
	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/storage"
	"github.com/sirdesai22/padel-score/internal/storage/gormstore"
	"github.com/sirdesai22/padel-score/internal/workers"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeES answers bulk requests with itemStatus for every item and records
// the request bodies.
type fakeES struct {
	mu         sync.Mutex
	itemStatus int
	bodies     []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	if !strings.HasSuffix(r.URL.Path, "/_bulk") {
		_, _ = io.WriteString(w, `{}`)
		return
	}

	raw, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.bodies = append(f.bodies, string(raw))
	status := f.itemStatus
	f.mu.Unlock()

	var items []map[string]any
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	for _, line := range lines {
		var meta map[string]map[string]any
		if err := json.Unmarshal([]byte(line), &meta); err != nil {
			continue
		}
		for action, m := range meta {
			if _, ok := m["_id"]; !ok {
				continue
			}
			item := map[string]any{"_index": m["_index"], "_id": m["_id"], "status": status}
			if status > 201 {
				item["error"] = map[string]any{"type": "mapper_exception", "reason": "boom"}
			}
			items = append(items, map[string]any{action: item})
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"took": 1, "errors": status > 201, "items": items})
}

func (f *fakeES) lastBody() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bodies) == 0 {
		return ""
	}
	return f.bodies[len(f.bodies)-1]
}

func setup(t *testing.T, itemStatus int) (*workers.SyncWorker, *gorm.DB, *fakeES) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "sync.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fake := &fakeES{itemStatus: itemStatus}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	if err != nil {
		t.Fatalf("es client: %v", err)
	}
	return &workers.SyncWorker{DB: gdb, ES: client, BatchSize: 10}, gdb, fake
}

func seedMatch(t *testing.T, gdb *gorm.DB) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	s := gormstore.New(gdb)
	m, err := s.InsertMatch(ctx, storage.Match{ID: uuid.New(), OwnerID: "u1", Status: storage.StatusLive})
	if err != nil {
		t.Fatalf("insert match: %v", err)
	}
	if _, err := s.CreateState(ctx, m.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("create state: %v", err)
	}
	if _, err := s.AppendEvent(ctx, m.ID, storage.EventStart, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	return m.ID
}

func insertDLQ(t *testing.T, gdb *gorm.DB, entityID, op string) models.DLQ {
	t.Helper()
	d := models.DLQ{OutboxID: 7, EntityType: gormstore.EntityMatch, EntityID: entityID, Op: op, ErrorMsg: "first failure"}
	if err := gdb.Create(&d).Error; err != nil {
		t.Fatalf("insert dlq: %v", err)
	}
	return d
}

func reload(t *testing.T, gdb *gorm.DB, id int64) models.DLQ {
	t.Helper()
	var d models.DLQ
	if err := gdb.First(&d, "id = ?", id).Error; err != nil {
		t.Fatalf("reload dlq: %v", err)
	}
	return d
}

func TestRetryOneResolves(t *testing.T) {
	t.Parallel()
	w, gdb, fake := setup(t, http.StatusCreated)
	id := seedMatch(t, gdb)
	d := insertDLQ(t, gdb, id.String(), gormstore.OpUpsert)

	if err := w.RetryOne(context.Background(), d); err != nil {
		t.Fatalf("retry: %v", err)
	}
	got := reload(t, gdb, d.ID)
	if !got.Resolved || got.Attempts != 1 || got.RetriedAt == nil {
		t.Fatalf("dlq = %+v, want resolved after one attempt", got)
	}

	body := fake.lastBody()
	for _, want := range []string{`"index"`, id.String(), `"owner_id":"u1"`, `"last_event_type":"START"`, `"last_seq":1`} {
		if !strings.Contains(body, want) {
			t.Fatalf("bulk body %q does not contain %s", body, want)
		}
	}
}

func TestRetryOneDeleteKeepsOperation(t *testing.T) {
	t.Parallel()
	w, gdb, fake := setup(t, http.StatusOK)
	id := uuid.New()
	d := insertDLQ(t, gdb, id.String(), gormstore.OpDelete)

	if err := w.RetryOne(context.Background(), d); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if body := fake.lastBody(); !strings.Contains(body, `"delete"`) {
		t.Fatalf("bulk body %q is not a delete", body)
	}
}

func TestRetryOneFailureCountsAttempt(t *testing.T) {
	t.Parallel()
	w, gdb, _ := setup(t, http.StatusInternalServerError)
	id := seedMatch(t, gdb)
	d := insertDLQ(t, gdb, id.String(), gormstore.OpUpsert)

	err := w.RetryOne(context.Background(), d)
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("retry error = %v, want bulk failure", err)
	}
	got := reload(t, gdb, d.ID)
	if got.Resolved || got.Attempts != 1 {
		t.Fatalf("dlq = %+v, want unresolved with one attempt", got)
	}

	var count int64
	if err := gdb.Model(&models.DLQ{}).Count(&count).Error; err != nil {
		t.Fatalf("count dlq: %v", err)
	}
	if count != 1 {
		t.Fatalf("dlq rows = %d, want 1", count)
	}
}

func TestRetryOneRejectsBadEntityID(t *testing.T) {
	t.Parallel()
	w, gdb, _ := setup(t, http.StatusOK)
	d := insertDLQ(t, gdb, "not-a-uuid", gormstore.OpUpsert)

	if err := w.RetryOne(context.Background(), d); err == nil {
		t.Fatal("retry with malformed entity id succeeded")
	}
}

func TestRetryDLQSkipsResolved(t *testing.T) {
	t.Parallel()
	w, gdb, fake := setup(t, http.StatusCreated)
	id := seedMatch(t, gdb)
	d := insertDLQ(t, gdb, id.String(), gormstore.OpUpsert)
	if err := gdb.Model(&models.DLQ{}).Where("id = ?", d.ID).Update("resolved", true).Error; err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if err := w.RetryDLQ(context.Background()); err != nil {
		t.Fatalf("retry dlq: %v", err)
	}
	if body := fake.lastBody(); body != "" {
		t.Fatalf("resolved row was retried: %q", body)
	}
}

func TestRetryOneReportsBookkeepingFailure(t *testing.T) {
	t.Parallel()
	w, gdb, _ := setup(t, http.StatusCreated)
	id := seedMatch(t, gdb)
	d := insertDLQ(t, gdb, id.String(), gormstore.OpUpsert)

	// the reindex succeeds but the row can no longer be marked resolved
	if err := gdb.Migrator().DropTable(&models.DLQ{}); err != nil {
		t.Fatalf("drop dlq table: %v", err)
	}

	err := w.RetryOne(context.Background(), d)
	if err == nil {
		t.Fatal("retry reported success without marking the row resolved")
	}
	if !strings.Contains(err.Error(), "mark resolved") {
		t.Fatalf("retry error = %v, want mark resolved failure", err)
	}
}
