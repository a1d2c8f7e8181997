package sqlite

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// normalizeError maps sqlite3 constraint violations onto the repository
// error kinds so callers never see driver types.
func normalizeError(err error, entity string) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return repository.DuplicateKey(entity)
	case sqlite3.ErrConstraintForeignKey:
		return repository.ForeignKey(entity)
	}
	return err
}
