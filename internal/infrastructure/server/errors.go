package server

import "errors"

// Common errors in the server package
var (
	// ErrResponseWriterNotFlusher is returned when the ResponseWriter doesn't support Flusher interface
	ErrResponseWriterNotFlusher = errors.New("response writer does not implement http.Flusher")

	// ErrSessionExists is returned when a second registration is attempted under an existing id
	ErrSessionExists = errors.New("session already registered")

	// ErrSessionClosed is returned when sending on a session whose connection has gone away
	ErrSessionClosed = errors.New("session is closed")

	// ErrChannelFull is returned when a session's outbound channel is full
	ErrChannelFull = errors.New("notification channel is full")
)
