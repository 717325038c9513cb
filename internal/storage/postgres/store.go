package postgres

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned by single-row lookups that match nothing.
var ErrNotFound = errors.New("not found")

// ErrActiveJobExists is returned when an account already has a queued,
// running or rate limited job.
var ErrActiveJobExists = errors.New("account already has an active job")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
