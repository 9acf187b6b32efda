package db

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidQuery :
// Used in case the query to perform in the DB is either
// `nil` or empty.
var ErrInvalidQuery = fmt.Errorf("invalid nil query")

// ErrInvalidDB :
// Used whenever an operation is attempted on a `nil`
// database.
var ErrInvalidDB = fmt.Errorf("invalid nil DB")

// ErrInvalidData :
// Used to indicate that an argument could not be turned
// into its DB representation.
var ErrInvalidData = fmt.Errorf("invalid data to insert to DB")

// ErrNoSQLCode :
// Defines that the error message provided in input does
// not define any SQL error code.
var ErrNoSQLCode = fmt.Errorf("no SQL code found in error message")

// SQL error codes surfaced by the driver that the schema
// can actually produce: every table carries non-null
// columns, unique constraints and the planet hierarchy is
// linked through foreign keys.
const (
	nonNullConstraint   int = 23502
	foreignKeyViolation int = 23503
	duplicatedElement   int = 23505
)

// Error :
// Wraps a failed SQL query with the error code the driver
// reported, keeping the initial error for context.
type Error struct {
	SQLCode int
	Err     error
}

// Error :
// Implementation of the `error` interface.
func (e Error) Error() string {
	return fmt.Sprintf("SQL query failed with code %d (err: %v)", e.SQLCode, e.Err.Error())
}

// NonNullConstraintError :
// A `null` value reached a column that does not accept
// one. The `Column` names the violated column.
type NonNullConstraintError struct {
	Column string
	Err    error
}

// Error :
// Implementation of the `error` interface.
func (e NonNullConstraintError) Error() string {
	return fmt.Sprintf("Query violates non null constraint on column \"%s\"", e.Column)
}

// DuplicatedElementError :
// An insertion collided with an existing row on a unique
// constraint, whose name is kept in `Constraint`.
type DuplicatedElementError struct {
	Constraint string
	Err        error
}

// Error :
// Implementation of the `error` interface.
func (e DuplicatedElementError) Error() string {
	return fmt.Sprintf("Query violates unique constraint \"%s\"", e.Constraint)
}

// ForeignKeyViolationError :
// A row referenced a parent that does not exist, which
// happens when a planet sub-resource outlives its planet.
type ForeignKeyViolationError struct {
	Table      string
	ForeignKey string
	Err        error
}

// Error :
// Implementation of the `error` interface.
func (e ForeignKeyViolationError) Error() string {
	return fmt.Sprintf("Query violates foreign key \"%s\" existence on table \"%s\"", e.ForeignKey, e.Table)
}

// quotedSection :
// Returns the part of `msg` enclosed in double quotes right
// after the input cue, or an empty string when the message
// does not follow the expected shape.
func quotedSection(msg string, cue string) string {
	id := strings.Index(msg, cue)
	if id < 0 {
		return ""
	}

	end := msg[id+len(cue):]

	id = strings.Index(end, "\"")
	if id < 0 {
		return ""
	}

	return end[:id]
}

// newNonNullConstraintError :
// Extracts the violated column from the driver message and
// wraps the input error accordingly.
func newNonNullConstraintError(err error) error {
	column := quotedSection(err.Error(), "null value in column \"")
	if len(column) == 0 {
		return err
	}

	return Error{
		SQLCode: nonNullConstraint,
		Err: NonNullConstraintError{
			Column: column,
			Err:    err,
		},
	}
}

// newDuplicatedElementError :
// Extracts the violated unique constraint from the driver
// message and wraps the input error accordingly.
func newDuplicatedElementError(err error) error {
	constraint := quotedSection(err.Error(), "duplicate key value violates unique constraint \"")
	if len(constraint) == 0 {
		return err
	}

	return Error{
		SQLCode: duplicatedElement,
		Err: DuplicatedElementError{
			Constraint: constraint,
			Err:        err,
		},
	}
}

// newForeignKeyViolation :
// Extracts the table and the violated key from the driver
// message. The constraint follows the `table_field_fkey`
// convention so the field can be isolated.
func newForeignKeyViolation(err error) error {
	msg := err.Error()

	table := quotedSection(msg, "insert or update on table \"")
	if len(table) == 0 {
		return err
	}

	constraint := quotedSection(msg, "violates foreign key constraint \"")
	if len(constraint) <= len(table)+len("_fkey") {
		return err
	}

	field := constraint[len(table)+1:]
	if !strings.HasSuffix(field, "_fkey") {
		return err
	}

	return Error{
		SQLCode: foreignKeyViolation,
		Err: ForeignKeyViolationError{
			Table:      table,
			ForeignKey: strings.TrimSuffix(field, "_fkey"),
			Err:        err,
		},
	}
}

// parseSQLCode :
// Parses the SQL code out of a driver message shaped like
// `error msg (SQLSTATE : CODE)`. An error is returned when
// no code can be found.
func parseSQLCode(msg string) (int, error) {
	cue := "SQLSTATE "

	id := strings.Index(msg, cue)
	if id < 0 {
		return 0, ErrNoSQLCode
	}

	end := msg[id+len(cue):]

	id = strings.Index(end, ")")
	if id < 0 {
		return 0, ErrNoSQLCode
	}

	code, err := strconv.ParseInt(end[:id], 10, 32)
	if err != nil {
		return 0, ErrNoSQLCode
	}

	return int(code), nil
}

// formatDBError :
// Specializes the input DB error based on the SQL code it
// carries. When no code can be extracted the initial error
// is returned untouched.
func formatDBError(err error) error {
	if err == nil {
		return err
	}

	code, pErr := parseSQLCode(err.Error())
	if pErr != nil {
		return err
	}

	switch code {
	case nonNullConstraint:
		return newNonNullConstraintError(err)
	case foreignKeyViolation:
		return newForeignKeyViolation(err)
	case duplicatedElement:
		return newDuplicatedElementError(err)
	}

	return Error{
		SQLCode: code,
		Err:     err,
	}
}
