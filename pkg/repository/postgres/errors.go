package postgres

import (
	"errors"

	"github.com/lib/pq"

	"github.com/gatehouse-auth/gatehouse/pkg/repository"
)

// pq error codes normalized into the repository error kinds.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// normalizeError maps driver-specific constraint failures onto the uniform
// repository errors so callers never branch on pq error text.
func normalizeError(err error, entity string) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return repository.DuplicateKey(entity)
		case pqForeignKeyViolation:
			return repository.ForeignKey(entity)
		}
	}
	return err
}
