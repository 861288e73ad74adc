package domain

import "github.com/google/uuid"

// ConnectionID is the ephemeral routing address the relay assigns to one
// live transport connection. It is never persisted and dies with the
// connection.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func (id ConnectionID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}
