package spotify

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/zmb3/spotify/v2"

	"github.com/ewilliams-labs/spadeboot/internal/core/domain"
)

// apiStatus extracts the HTTP status of a Web API error, or 0 when the
// request never got an answer.
func apiStatus(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status
	}
	return 0
}

// classify maps an API failure onto the player error categories.
func classify(err error) domain.ErrorKind {
	if errors.Is(err, domain.ErrNotAuthenticated) {
		return domain.ErrorAuthentication
	}
	switch status := apiStatus(err); {
	case status == http.StatusUnauthorized:
		return domain.ErrorAuthentication
	case status == http.StatusForbidden:
		return domain.ErrorAccount
	case status == 0:
		return domain.ErrorInitialization
	default:
		return domain.ErrorPlayback
	}
}

// wrap annotates err with the operation and, for a missing device, the
// domain sentinel the session checks for.
func wrap(op string, err error) error {
	if apiStatus(err) == http.StatusNotFound {
		return fmt.Errorf("spotify adapter: %s: %w: %w", op, domain.ErrPlayerUnavailable, err)
	}
	return fmt.Errorf("spotify adapter: %s: %w", op, err)
}
