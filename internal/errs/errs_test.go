package errs_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentoven/studyhall/internal/errs"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, errs.Internal, errs.KindOf(errors.New("boom")))
	assert.Equal(t, errs.Forbidden, errs.KindOf(errs.New(errs.Forbidden, "no")))

	wrapped := fmt.Errorf("outer: %w", errs.New(errs.NotFound, "course not found"))
	assert.Equal(t, errs.NotFound, errs.KindOf(wrapped))
	assert.True(t, errs.Is(wrapped, errs.NotFound))
	assert.False(t, errs.Is(nil, errs.NotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	err := errs.Wrap(errs.ModelUnavailable, context.DeadlineExceeded, "model timed out")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "model timed out", errs.PublicMessage(err))
	assert.Nil(t, errs.Wrap(errs.Internal, nil, "x"))
}

func TestNotConfigured(t *testing.T) {
	err := errs.NotConfigured("openai")
	assert.ErrorIs(t, err, errs.ErrNotConfigured)
	assert.Equal(t, errs.ModelUnavailable, errs.KindOf(err))
}

func TestPublicMessageHidesForeignErrors(t *testing.T) {
	assert.Equal(t, "internal server error", errs.PublicMessage(errors.New("ERROR: relation \"messages\" does not exist (SQLSTATE 42P01)")))
}
