package domain

import "errors"

var (
	ErrUnknownConditionKind = errors.New("unknown routing condition kind")
	ErrInvalidCondition     = errors.New("invalid routing condition")
	ErrInvalidTimeWindow    = errors.New("invalid routing time window")
	ErrGatewayNotFound      = errors.New("gateway connection not found")
	ErrSnapshotNotReady     = errors.New("routing snapshot not loaded yet")
	ErrDecisionQueueFull    = errors.New("decision log queue full")
	ErrInvalidRequest       = errors.New("invalid routing request")
)
