package graphqltransportws

import "github.com/bhoriuchi/cf-graphql-server/ws/protocol"

// handleComplete cancels a running operation
func (c *wsConnection) handleComplete(msg protocol.RawMessage) {
	id, err := msg.ID()
	if err != nil {
		c.log.Errorf("%d: %s", BadRequest, err)
		c.close(BadRequest, err.Error())
		return
	}

	if c.mgr.Remove(id) != nil {
		c.log.WithField("operationId", id).Debugf("operation cancelled by client")
	}
}
