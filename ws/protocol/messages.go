package protocol

import (
	"fmt"

	"github.com/bhoriuchi/cf-graphql-server/utils"
	"github.com/graphql-go/graphql/gqlerrors"
)

// MessageType is a message type
type MessageType string

const (
	MsgConnectionInit MessageType = "connection_init"
	MsgConnectionAck  MessageType = "connection_ack"
	MsgPing           MessageType = "ping"
	MsgPong           MessageType = "pong"
	MsgSubscribe      MessageType = "subscribe"
	MsgNext           MessageType = "next"
	MsgError          MessageType = "error"
	MsgComplete       MessageType = "complete"
)

// ExecutionResult result of an execution
type ExecutionResult struct {
	Errors     gqlerrors.FormattedErrors `json:"errors,omitempty"`
	Data       interface{}               `json:"data,omitempty"`
	Extensions map[string]interface{}    `json:"extensions,omitempty"`
}

type OperationMessage struct {
	ID      string      `json:"id,omitempty"`
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// RawMessage is the raw message data
type RawMessage map[string]interface{}

// string field extracts a string value from a raw message
func (m RawMessage) stringField(name string) (string, error) {
	rawField, ok := m[name]
	if !ok || rawField == nil {
		return "", fmt.Errorf("message is missing the '%s' property", name)
	}

	strField, ok := rawField.(string)
	if !ok {
		return "", fmt.Errorf("message expects the '%s' property to be a string but got %T", name, rawField)
	}

	if strField == "" {
		return "", fmt.Errorf("message is missing the '%s' property", name)
	}

	return strField, nil
}

// Type validates and extracts the type field value from a raw message
func (m RawMessage) Type() (MessageType, error) {
	str, err := m.stringField("type")
	if err != nil {
		return "", err
	}

	return MessageType(str), nil
}

// ID validates and extracts the id field value from a raw message
func (m RawMessage) ID() (string, error) {
	return m.stringField("id")
}

// HasPayload returns true if the payload field exists and is not null
func (m RawMessage) HasPayload() bool {
	p, ok := m["payload"]
	return ok && p != nil
}

// RecordPayload converts the payload to a record
func (m RawMessage) RecordPayload() (map[string]interface{}, error) {
	return decodePayload[map[string]interface{}](m)
}

// SubscribePayload converts the payload to a subscribe payload
func (m RawMessage) SubscribePayload() (*SubscribePayload, error) {
	p, err := decodePayload[SubscribePayload](m)
	if err != nil {
		return nil, err
	}

	if p.Query == "" {
		return nil, fmt.Errorf("message payload is missing the 'query' property")
	}
	return &p, nil
}

func decodePayload[T any](m RawMessage) (T, error) {
	var out T

	payload, ok := m["payload"]
	if !ok || payload == nil {
		return out, fmt.Errorf("message is missing the 'payload' property")
	}

	if err := utils.ReMarshal(payload, &out); err != nil {
		return out, fmt.Errorf("failed to parse payload: %w", err)
	}
	return out, nil
}

// SubscribePayload payload for a subscribe operation
type SubscribePayload struct {
	OperationName string                 `json:"operationName"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	Extensions    map[string]interface{} `json:"extensions"`
}
