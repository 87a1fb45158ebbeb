package store

import (
	"fmt"
	"os"
	"strings"
)

// SplitStatements breaks a schema definition into individual statements on
// the ";" separator, dropping empties. Statements containing the separator
// inside string literals or comments are not handled.
func SplitStatements(schema string) []string {
	parts := strings.Split(schema, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		statements = append(statements, part)
	}
	return statements
}

// ApplySchemaFile reads a schema definition file and executes each statement
// sequentially. Re-running against an existing schema is not guaranteed to be
// idempotent; conflicting object creation fails.
func (s *GormStore) ApplySchemaFile(path string) error {
	schema, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	return s.ApplySchema(string(schema))
}

// ApplySchema executes the given schema definition statement by statement.
func (s *GormStore) ApplySchema(schema string) error {
	for _, statement := range SplitStatements(schema) {
		if err := s.db.Exec(statement + ";").Error; err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
