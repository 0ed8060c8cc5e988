package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to stmt. SQLite has no row-level locks and
// serializes writers instead, so the clause is skipped there.
func ForUpdate(stmt *gorm.DB) *gorm.DB {
	if stmt.Dialector != nil && stmt.Dialector.Name() == DialectSQLite {
		return stmt
	}
	return stmt.Clauses(clause.Locking{Strength: "UPDATE"})
}
