package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrListingUnavailable = errors.New("listing no longer available")
	ErrWSDisconnect       = errors.New("websocket disconnected")
	ErrStreamDead         = errors.New("stream closed repeatedly, credentials presumed invalid")
	ErrNoFairValue        = errors.New("no fair value known for item")
	ErrSolverFailed       = errors.New("anti-bot challenge solve failed")
)
