package protocol

import "context"

// Context is the state of one websocket connection as seen by hooks
type Context interface {
	// ConnectionID returns the connection id
	ConnectionID() string

	// Context returns the original connection request context
	Context() context.Context

	ConnectionInitReceived() bool

	Acknowledged() bool

	// ConnectionParams are the connection_init payload
	ConnectionParams() map[string]interface{}
}
