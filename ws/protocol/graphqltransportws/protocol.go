package graphqltransportws

import (
	"time"

	"github.com/bhoriuchi/cf-graphql-server/ws/protocol"
)

// CloseCode a closing code
type CloseCode int

const (
	// Subprotocol - https://github.com/enisdenjo/graphql-ws/blob/master/PROTOCOL.md
	Subprotocol = "graphql-transport-ws"

	// Close codes
	NormalClosure                   CloseCode = 1000
	InternalServerError             CloseCode = 4500
	BadRequest                      CloseCode = 4400
	Unauthorized                    CloseCode = 4401
	Forbidden                       CloseCode = 4403
	SubprotocolNotAcceptable        CloseCode = 4406
	ConnectionInitialisationTimeout CloseCode = 4408
	SubscriberAlreadyExists         CloseCode = 4409
	TooManyInitialisationRequests   CloseCode = 4429

	// Thresholds
	WriteTimeout                     = 10 * time.Second
	DefaultConnectionInitWaitTimeout = 3 * time.Second
)

// SubscribeMessage is a validated subscribe message, passed to the
// ContextFunc of an operation
type SubscribeMessage struct {
	ID      string                    `json:"id"`
	Type    protocol.MessageType      `json:"type"`
	Payload protocol.SubscribePayload `json:"payload"`
}
