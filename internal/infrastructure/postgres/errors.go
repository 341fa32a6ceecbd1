package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations. Two repositories turn it into domain errors: sync locks
// (acquisition lost) and webhook events (duplicate delivery).
const uniqueViolation = pq.ErrorCode("23505")

func asPQError(err error, target **pq.Error) bool {
	return errors.As(err, target)
}
