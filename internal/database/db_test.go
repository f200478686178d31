package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
	if err := Ping(context.Background(), db); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestNormaliseDriver(t *testing.T) {
	cases := map[string]string{
		"":           "sqlite",
		"SQLite3":    "sqlite",
		"postgresql": "postgres",
		" pg ":       "postgres",
		"mysql":      "mysql",
	}
	for in, want := range cases {
		if got := NormaliseDriver(in); got != want {
			t.Fatalf("NormaliseDriver(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPingNilHandle(t *testing.T) {
	if err := Ping(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil handle")
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
