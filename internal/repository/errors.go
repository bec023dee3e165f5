package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrUniqueViolation wraps PostgreSQL unique_violation (23505) failures.
var ErrUniqueViolation = errors.New("unique violation")

const pqUniqueViolation = pq.ErrorCode("23505")

// mapWriteError tags unique violations so services can answer with a conflict.
func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return fmt.Errorf("%s: %w: %s", op, ErrUniqueViolation, pqErr.Constraint)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// likePattern escapes LIKE metacharacters in term.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
