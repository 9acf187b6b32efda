package db

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDBErrorDuplicatedElement(t *testing.T) {
	err := fmt.Errorf("ERROR: duplicate key value violates unique constraint \"users_username_key\" (SQLSTATE 23505)")

	formatted := formatDBError(err)

	wrapped, ok := formatted.(Error)
	require.True(t, ok)
	assert.Equal(t, duplicatedElement, wrapped.SQLCode)

	dup, ok := wrapped.Err.(DuplicatedElementError)
	require.True(t, ok)
	assert.Equal(t, "users_username_key", dup.Constraint)
}

func TestFormatDBErrorNonNullConstraint(t *testing.T) {
	err := fmt.Errorf("ERROR: null value in column \"owner_id\" violates not-null constraint (SQLSTATE 23502)")

	formatted := formatDBError(err)

	wrapped, ok := formatted.(Error)
	require.True(t, ok)

	nn, ok := wrapped.Err.(NonNullConstraintError)
	require.True(t, ok)
	assert.Equal(t, "owner_id", nn.Column)
}

func TestFormatDBErrorForeignKeyViolation(t *testing.T) {
	err := fmt.Errorf("ERROR: insert or update on table \"buildings\" violates foreign key constraint \"buildings_planet_id_fkey\" (SQLSTATE 23503)")

	formatted := formatDBError(err)

	wrapped, ok := formatted.(Error)
	require.True(t, ok)

	fk, ok := wrapped.Err.(ForeignKeyViolationError)
	require.True(t, ok)
	assert.Equal(t, "buildings", fk.Table)
	assert.Equal(t, "planet_id", fk.ForeignKey)
}

func TestFormatDBErrorPassthrough(t *testing.T) {
	assert.NoError(t, formatDBError(nil))

	// No SQL code means the error stays untouched.
	plain := fmt.Errorf("connection refused")
	assert.Equal(t, plain, formatDBError(plain))

	// An unknown code still gets wrapped.
	odd := fmt.Errorf("ERROR: whatever (SQLSTATE 42601)")
	wrapped, ok := formatDBError(odd).(Error)
	require.True(t, ok)
	assert.Equal(t, 42601, wrapped.SQLCode)
}
