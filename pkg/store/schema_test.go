package store

import "testing"

func TestSplitStatements(t *testing.T) {
	schema := `
CREATE TABLE users (id TEXT PRIMARY KEY);

CREATE TABLE chats (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL
);

CREATE INDEX idx_chats_user ON chats (user_id);
`
	statements := SplitStatements(schema)
	if len(statements) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(statements), statements)
	}
	if statements[0] != "CREATE TABLE users (id TEXT PRIMARY KEY)" {
		t.Fatalf("unexpected first statement: %q", statements[0])
	}
}

func TestSplitStatementsDropsEmpties(t *testing.T) {
	if got := SplitStatements(";;  ;\n;"); len(got) != 0 {
		t.Fatalf("expected no statements, got %q", got)
	}
	if got := SplitStatements(""); len(got) != 0 {
		t.Fatalf("expected no statements for empty input, got %q", got)
	}
}
