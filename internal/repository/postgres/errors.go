package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

// Constraint names from the embedded migrations.
const (
	usersEmailConstraint = "users_email_key"
	codesSiteConstraint  = "codes_site_id_fkey"
)

// IsUniqueViolation reports whether err is a unique violation of
// constraint, or of any unique constraint when constraint is "".
func IsUniqueViolation(err error, constraint string) bool {
	return violates(err, pqUniqueViolation, constraint)
}

// IsForeignKeyViolation is IsUniqueViolation for foreign keys.
func IsForeignKeyViolation(err error, constraint string) bool {
	return violates(err, pqForeignKeyViolation, constraint)
}

func violates(err error, code pq.ErrorCode, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
