package application

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	assert.Empty(t, err.Error())

	assert.Equal(t, "validation failed", (&ValidationError{}).Error())

	withFields := &ValidationError{FieldErrors: map[string]string{"slot": "bad", "date": "missing"}}
	assert.Equal(t, "validation failed: date: missing; slot: bad", withFields.Error())
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	assert.False(t, (&ValidationError{}).HasErrors())
	assert.True(t, (&ValidationError{FieldErrors: map[string]string{"field": "bad"}}).HasErrors())
}

func TestValidationError_AddAndMerge(t *testing.T) {
	t.Parallel()

	base := &ValidationError{}
	base.add("first", "value")
	assert.Equal(t, "value", base.FieldErrors["first"])

	base.merge(&ValidationError{FieldErrors: map[string]string{"second": "another"}})
	assert.Equal(t, "another", base.FieldErrors["second"])

	base.merge(nil)
	assert.Len(t, base.FieldErrors, 2)

	single := fieldError("date", "required")
	assert.True(t, single.HasErrors())
}
