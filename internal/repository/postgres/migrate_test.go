package postgres

import (
	"strings"
	"testing"
)

func usersTableDDL(t *testing.T) string {
	t.Helper()

	data, err := migrations.ReadFile("migrations/00001_init.sql")
	if err != nil {
		t.Fatalf("read init migration: %v", err)
	}

	ddl := string(data)
	start := strings.Index(ddl, "CREATE TABLE users")
	if start < 0 {
		t.Fatal("init migration must create the users table")
	}
	end := strings.Index(ddl[start:], ";")
	if end < 0 {
		t.Fatal("unterminated users DDL")
	}
	return ddl[start : start+end]
}

// UpsertOnIDConflict inserts explicit id values for known users, so the
// identity column must not be GENERATED ALWAYS: PostgreSQL rejects explicit
// values for those (SQLSTATE 428C9) before conflict resolution runs.
func TestUsersIDAcceptsExplicitValues(t *testing.T) {
	ddl := usersTableDDL(t)

	if strings.Contains(ddl, "GENERATED ALWAYS") {
		t.Fatal("users.id must accept explicit ids for re-registration upserts")
	}
	if !strings.Contains(ddl, "GENERATED BY DEFAULT AS IDENTITY") {
		t.Fatal("users.id must remain a BY DEFAULT identity column")
	}
}

func TestUsersEmailUnique(t *testing.T) {
	ddl := usersTableDDL(t)

	if !strings.Contains(ddl, "email") || !strings.Contains(ddl, "UNIQUE") {
		t.Fatal("users.email must carry the uniqueness constraint backing duplicate registration checks")
	}
}
