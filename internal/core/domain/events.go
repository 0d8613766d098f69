package domain

import "fmt"

// PlayerEvent is one of ReadyEvent, NotReadyEvent, StateChangedEvent or ErrorEvent.
type PlayerEvent interface {
	playerEvent()
}

// ReadyEvent reports the player is connected on DeviceID.
type ReadyEvent struct {
	DeviceID string
}

// NotReadyEvent reports DeviceID went offline.
type NotReadyEvent struct {
	DeviceID string
}

// StateChangedEvent carries a fresh playback snapshot.
type StateChangedEvent struct {
	State PlaybackState
}

// ErrorKind classifies player error callbacks.
type ErrorKind string

const (
	ErrorInitialization ErrorKind = "initialization_error"
	ErrorAuthentication ErrorKind = "authentication_error"
	ErrorAccount        ErrorKind = "account_error"
	ErrorPlayback       ErrorKind = "playback_error"
)

// ErrorEvent is an error callback from the player.
type ErrorEvent struct {
	Kind    ErrorKind
	Message string
}

func (e ErrorEvent) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (ReadyEvent) playerEvent()        {}
func (NotReadyEvent) playerEvent()     {}
func (StateChangedEvent) playerEvent() {}
func (ErrorEvent) playerEvent()        {}
