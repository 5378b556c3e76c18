// Package services holds the lead qualification business logic: session and
// conversation resolution, transcript extraction, scoring, lead upserts and
// the chat orchestrator that ties them together.
//
// This file centralizes service-level error values. Translation into HTTP
// status codes happens in the handler layer.
package services

import "errors"

var (
	// ErrInvalidInput is a precondition failure: empty text, missing session
	// or conversation id, or an unknown channel.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooLong is returned when a message exceeds the configured rune limit.
	ErrTooLong = errors.New("message too long")

	// ErrNotFound indicates that a requested session, conversation or lead does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConversationBusy is returned when another message on the same
	// conversation holds the lock past the wait budget.
	ErrConversationBusy = errors.New("conversation busy")

	// ErrCompletionFailed wraps any failure of the completion service.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrIdempotencyConflict is returned when a request key was already claimed.
	ErrIdempotencyConflict = errors.New("idempotency conflict")

	// ErrInvalidStatus is returned for unknown lead statuses.
	ErrInvalidStatus = errors.New("invalid lead status")
)
