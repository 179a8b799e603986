package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorUnwrapsToKind(t *testing.T) {
	err := New(ErrOrderNotFound, "order %d", 7)
	require.ErrorIs(t, err, ErrOrderNotFound)
	require.Equal(t, "order not found: order 7", err.Error())

	wrapped := fmt.Errorf("cancel: %w", err)
	require.ErrorIs(t, wrapped, ErrOrderNotFound)
	require.NotErrorIs(t, wrapped, ErrNotOrderOwner)
}

func TestClassOf(t *testing.T) {
	testCases := map[string]struct {
		err   error
		class Class
	}{
		"bare kind":        {ErrInvalidSize, ClassValidation},
		"detailed":         {New(ErrPostOrAbortCrossed, "best ask 100"), ClassRejection},
		"wrapped":          {fmt.Errorf("fill: %w", New(ErrInsufficientLocked, "")), ClassInvariant},
		"foreign":          {errors.New("disk on fire"), ClassUnknown},
		"nil":              {nil, ClassUnknown},
		"self match":       {ErrSelfMatch, ClassRejection},
		"priority too low": {ErrPriorityTooLow, ClassRejection},
	}
	for name, tc := range testCases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.class, ClassOf(tc.err))
		})
	}
	require.True(t, IsRejection(ErrFillOrAbortUnderfilled))
	require.True(t, IsInvariant(New(ErrInvariant, "double free")))
	require.Equal(t, "rejection", ClassRejection.String())
}
