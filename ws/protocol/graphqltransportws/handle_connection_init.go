package graphqltransportws

import "github.com/bhoriuchi/cf-graphql-server/ws/protocol"

// handleConnectionInit acknowledges the first connection_init unless the
// OnConnect hook rejects it. A second one closes the connection.
func (c *wsConnection) handleConnectionInit(msg protocol.RawMessage) {
	c.log.Tracef("received CONNECTION_INIT message")

	if !c.receiveInit(optionalRecord(msg)) {
		c.close(TooManyInitialisationRequests, "Too many initialisation requests")
		return
	}

	var ackPayload interface{}
	if c.config.OnConnect != nil {
		result, err := c.config.OnConnect(c)
		if err != nil {
			c.log.WithError(err).Errorf("onConnect hook failed")
			c.close(InternalServerError, err.Error())
			return
		}

		if permitted, ok := result.(bool); ok {
			if !permitted {
				c.log.Warnf("onConnect hook rejected the connection")
				c.close(Forbidden, "Forbidden")
				return
			}
		} else {
			ackPayload = result
		}
	}

	c.acknowledge()
	c.sendMessage(protocol.OperationMessage{
		Type:    protocol.MsgConnectionAck,
		Payload: ackPayload,
	})
	c.log.Debugf("acknowledged connection")
}
