package graphqltransportws

import "github.com/bhoriuchi/cf-graphql-server/ws/protocol"

func optionalRecord(msg protocol.RawMessage) map[string]interface{} {
	if !msg.HasPayload() {
		return nil
	}
	record, _ := msg.RecordPayload()
	return record
}

// handlePing answers with a pong echoing the payload, unless an OnPing hook
// takes over
func (c *wsConnection) handlePing(msg protocol.RawMessage) {
	payload := optionalRecord(msg)

	if c.config.OnPing != nil {
		c.config.OnPing(c, payload)
		return
	}

	c.log.Tracef("answering ping")
	c.sendMessage(protocol.OperationMessage{
		Type:    protocol.MsgPong,
		Payload: payload,
	})
}

func (c *wsConnection) handlePong(msg protocol.RawMessage) {
	if c.config.OnPong != nil {
		c.config.OnPong(c, optionalRecord(msg))
	}
}
