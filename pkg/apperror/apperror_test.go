package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Validation, KindOf(Validationf("bad input")))
	assert.Equal(t, NotFound, KindOf(NotFoundf("missing")))
	assert.Equal(t, Unauthorized, KindOf(Unauthorizedf("no")))
	assert.Equal(t, Conflict, KindOf(Conflictf("dup")))
	assert.Equal(t, InvalidState, KindOf(InvalidStatef("wrong phase")))
	assert.Equal(t, Unknown, KindOf(errors.New("plain")))
	assert.Equal(t, Unknown, KindOf(nil))
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", Conflictf("already exists"))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	err := Wrap(NotFound, cause, "load record")
	assert.True(t, IsNotFound(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "load record")
	assert.Contains(t, err.Error(), "disk on fire")
}
