package swarm

import "errors"

var (
	// Lifecycle errors.
	ErrAlreadyStarted = errors.New("swarm: node already started")
	ErrNotStarted     = errors.New("swarm: node not started")

	// Configuration errors.
	ErrNoNodeName = errors.New("swarm: node name not configured")
)
