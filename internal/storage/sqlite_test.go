package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"sounding_parser/internal/profile"
)

const (
	testTTAA = "TTAA 51231 03808 99996 07819 17005 00057 00057 05008 88215 52557 27040 31313"
	testTTBB = "TTBB 51238 03808 00996 07819 11995 08018 21212 00996 17005"
)

func testRecord(t *testing.T, ttaa, ttbb string, at time.Time) Record {
	t.Helper()
	p, errs := profile.Decode(ttaa, ttbb)
	r, err := NewRecord(p, errs, ttaa, ttbb, "test", at)
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	return r
}

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := OpenArchive(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("OpenArchive() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchiveSaveAndGet(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	at := time.Date(2026, 10, 1, 23, 40, 0, 0, time.UTC)
	r := testRecord(t, testTTAA, testTTBB, at)
	if err := a.Save(ctx, r); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := a.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetByID() = nil")
	}
	if got.Station != "03808" || got.Day != 1 || got.Hour != 23 || !got.ReceivedAt.Equal(at) {
		t.Errorf("record = %+v", got)
	}
	if got.TTAA != testTTAA || got.TTBB != testTTBB || !got.Complete {
		t.Errorf("raw parts not stored: %+v", got)
	}
	if !reflect.DeepEqual(got.Profile, r.Profile) {
		t.Errorf("profile round trip differs:\n%+v\n%+v", got.Profile, r.Profile)
	}

	missing, err := a.GetByID(ctx, uuid.New())
	if err != nil || missing != nil {
		t.Errorf("GetByID(unknown) = %v, %v; want nil, nil", missing, err)
	}
}

func TestArchiveQuery(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	records := []Record{
		testRecord(t, testTTAA, testTTBB, base),
		testRecord(t, "TTAA 52001 03808 99998 06520 18010", "", base.Add(12*time.Hour)),
		testRecord(t, "TTAA 51231 72201 99012 25658 09010", "", base.Add(time.Hour)),
	}
	for _, r := range records {
		if err := a.Save(ctx, r); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	latest, err := a.Latest(ctx, "03808")
	if err != nil || latest == nil {
		t.Fatalf("Latest() = %v, %v", latest, err)
	}
	if latest.ID != records[1].ID {
		t.Errorf("Latest() = %s, want %s", latest.ID, records[1].ID)
	}

	list, err := a.List(ctx, "03808", 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("List() = %d records, %v; want 2", len(list), err)
	}

	complete, err := a.Query(ctx, QueryParams{Complete: true})
	if err != nil || len(complete) != 1 || complete[0].ID != records[0].ID {
		t.Errorf("Query(Complete) = %v, %v", complete, err)
	}

	fts, err := a.Query(ctx, QueryParams{FullText: "72201"})
	if err != nil || len(fts) != 1 || fts[0].Station != "72201" {
		t.Errorf("Query(FullText) = %v, %v", fts, err)
	}

	none, err := a.Latest(ctx, "99999")
	if err != nil || none != nil {
		t.Errorf("Latest(unknown) = %v, %v", none, err)
	}

	stats, err := a.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalProfiles != 3 || stats.Complete != 1 || stats.ByStation["03808"] != 2 {
		t.Errorf("GetStats() = %+v", stats)
	}

	stations, err := a.Stations(ctx)
	if err != nil || !reflect.DeepEqual(stations, []string{"03808", "72201"}) {
		t.Errorf("Stations() = %v, %v", stations, err)
	}
}

func TestDBWithArchiveOnly(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{SQLitePath: filepath.Join(t.TempDir(), "db.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.CreateSchemas(ctx); err != nil {
		t.Fatalf("CreateSchemas() error = %v", err)
	}

	r := testRecord(t, testTTAA, "", time.Now())
	if err := db.Save(ctx, r); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := db.Latest(ctx, "03808")
	if err != nil || got == nil || got.ID != r.ID {
		t.Fatalf("Latest() = %+v, %v", got, err)
	}
	if got.Complete {
		t.Error("TTAA-only record marked complete")
	}
}

func TestDBWithoutStores(t *testing.T) {
	db := &DB{}
	if _, err := db.Latest(context.Background(), "03808"); err != ErrNoStore {
		t.Errorf("Latest() error = %v, want ErrNoStore", err)
	}
	if err := db.Save(context.Background(), Record{}); err != nil {
		t.Errorf("Save() with no stores = %v, want nil", err)
	}
}

func TestNewRecord(t *testing.T) {
	if _, err := NewRecord(nil, nil, "", "", "", time.Now()); err == nil {
		t.Error("NewRecord(nil) error = nil")
	}

	p, errs := profile.Decode("TTBB 51231 03808 99996", "")
	r, err := NewRecord(p, errs, "", "", "cli", time.Now())
	if err != nil {
		t.Fatalf("NewRecord() error = %v", err)
	}
	if len(r.Warnings) != 1 || r.ID == uuid.Nil {
		t.Errorf("record = %+v", r)
	}

	c := &profile.Collated{Key: profile.Key{Station: "03808"}, Profile: p, Complete: true, TTAA: "TTAA"}
	r, err = FromCollated(c, "nats", time.Now())
	if err != nil || !r.Complete || r.TTAA != "TTAA" {
		t.Errorf("FromCollated() = %+v, %v", r, err)
	}
}

func TestLevelRows(t *testing.T) {
	r := testRecord(t, testTTAA, testTTBB, time.Now())
	rows := r.levelRows()
	if len(rows) != 3 {
		t.Fatalf("levelRows() = %d rows, want 3", len(rows))
	}
	if rows[0].Kind != kindMandatory || rows[1].Kind != kindSignificant || rows[2].Seq != 1 {
		t.Errorf("levelRows() = %+v", rows)
	}
	if int32Ptr(nil) != nil || *int32Ptr(rows[0].Level.Height) != 57 {
		t.Error("int32Ptr conversion")
	}
}
