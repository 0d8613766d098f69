package ports

import (
	"context"
	"errors"
	"fmt"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// ErrRefreshRejected indicates the token endpoint refused the refresh token.
var ErrRefreshRejected = errors.New("refresh rejected")

// RefreshError provides context for a failed refresh.
type RefreshError struct {
	Status int
	Reason string
}

func (e RefreshError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("refresh rejected with status %d", e.Status)
	}
	return fmt.Sprintf("refresh rejected with status %d: %s", e.Status, e.Reason)
}

func (e RefreshError) Is(target error) bool {
	return target == ErrRefreshRejected
}

// TokenRefresher exchanges a refresh token for a new bundle. An empty
// RefreshToken in the result means the old one was not rotated.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (domain.TokenBundle, error)
}
