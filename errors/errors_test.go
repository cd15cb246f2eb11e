package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Is_MatchesKindAndReason(t *testing.T) {
	req := require.New(t)

	err := ErrMinimumMembers.WithMessage("group %s would drop to %d", "g1", 2)

	req.True(Is(err, ErrMinimumMembers))
	req.True(Is(err, ErrPreconditionFailed))
	req.False(Is(err, ErrDuplicateRequest))
	req.False(Is(err, ErrForbidden))
	req.Contains(err.Error(), "MinimumMembersViolation")
}

func TestError_Is_ThroughWrapping(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("remove member: %w", ErrNotAdmin)

	req.True(Is(err, ErrForbidden))
	req.Equal(KindForbidden, KindOf(err))
	req.Equal(http.StatusForbidden, HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", ErrInvalidToken, http.StatusUnauthorized},
		{"forbidden", ErrNotMember, http.StatusForbidden},
		{"not found", ErrChatNotFound, http.StatusNotFound},
		{"validation", ErrTooManyFiles, http.StatusBadRequest},
		{"precondition", ErrDuplicateRequest, http.StatusConflict},
		{"unclassified", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublic_HidesUnclassifiedErrors(t *testing.T) {
	req := require.New(t)

	kind, reason, message := Public(fmt.Errorf("badger: value log corrupted"))
	req.Equal(KindInternal, kind)
	req.Empty(reason)
	req.Equal("internal server error", message)

	kind, reason, message = Public(ErrLimitExceeded)
	req.Equal(KindPreconditionFailed, kind)
	req.Equal("LimitExceeded", reason)
	req.Equal("group members limit reached", message)
}
