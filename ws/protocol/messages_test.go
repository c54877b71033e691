package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawMessage(t *testing.T) {
	msg := RawMessage{
		"id":   "1",
		"type": "subscribe",
		"payload": map[string]interface{}{
			"query":     "{ hello }",
			"variables": map[string]interface{}{"a": 1},
		},
	}

	typ, err := msg.Type()
	require.NoError(t, err)
	assert.Equal(t, MsgSubscribe, typ)

	id, err := msg.ID()
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	payload, err := msg.SubscribePayload()
	require.NoError(t, err)
	assert.Equal(t, "{ hello }", payload.Query)
	assert.Equal(t, float64(1), payload.Variables["a"])
}

func TestRawMessageErrors(t *testing.T) {
	_, err := RawMessage{}.Type()
	assert.EqualError(t, err, "message is missing the 'type' property")

	_, err = RawMessage{"id": 5}.ID()
	assert.EqualError(t, err, "message expects the 'id' property to be a string but got int")

	_, err = RawMessage{"payload": map[string]interface{}{}}.SubscribePayload()
	assert.Error(t, err)

	assert.False(t, RawMessage{"payload": nil}.HasPayload())
}
