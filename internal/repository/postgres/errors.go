package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// isUniqueViolation reports a Postgres 23505 error, optionally on a named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
