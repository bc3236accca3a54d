package apperr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrappedErrorsMatchKindAndCause(t *testing.T) {
	err := Provider("embed", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrTicket)
	assert.Equal(t, "provider error: embed: context deadline exceeded", err.Error())
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"validation", Validation("question", nil), ErrValidation},
		{"ticket", Ticket("create case", errors.New("503")), ErrTicket},
		{"persistence", Persistence("insert", errors.New("locked")), ErrPersistence},
		{"unknown", errors.New("boom"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}
