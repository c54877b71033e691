package graphqltransportws

import (
	"context"
	"fmt"

	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/utils"
	"github.com/bhoriuchi/cf-graphql-server/ws/manager"
	"github.com/bhoriuchi/cf-graphql-server/ws/protocol"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

// handleSubscribe validates a subscribe message and starts the operation.
// Only queries and mutations are executed; each yields one next message
// followed by complete.
func (c *wsConnection) handleSubscribe(msg protocol.RawMessage) {
	id, err := msg.ID()
	if err != nil {
		c.log.WithError(err).Errorf("subscribe operation failed")
		c.close(BadRequest, err.Error())
		return
	}

	opLog := c.log.WithField("operationId", id)
	opLog.Tracef("received SUBSCRIBE message")

	payload, err := msg.SubscribePayload()
	if err != nil {
		opLog.WithError(err).Errorf("invalid subscribe message payload")
		c.close(BadRequest, err.Error())
		return
	}

	if !c.Acknowledged() {
		opLog.Errorf("attempted subscribe operation on unacknowledged connection")
		c.close(Unauthorized, "Unauthorized")
		return
	}

	subMsg := SubscribeMessage{
		ID:      id,
		Type:    protocol.MsgSubscribe,
		Payload: *payload,
	}

	baseCtx := c.ctx
	if c.config.ContextFunc != nil {
		baseCtx = c.config.ContextFunc(c, subMsg)
	}
	ctx, cancel := context.WithCancel(baseCtx)

	// register before executing so a duplicate id closes the connection
	if err := c.mgr.Add(&manager.Operation{
		ConnectionID:  c.id,
		OperationID:   id,
		OperationName: payload.OperationName,
		CancelFunc:    cancel,
	}); err != nil {
		cancel()
		opLog.WithError(err).Errorf("failed subscribe operation")
		c.close(SubscriberAlreadyExists, fmt.Sprintf("Subscriber for %s already exists", id))
		return
	}

	document, err := utils.ParseQuery(payload.Query)
	if err != nil {
		c.fail(id, opLog, err)
		return
	}

	if validation := graphql.ValidateDocument(c.schema, document, nil); !validation.IsValid {
		c.fail(id, opLog, validation.Errors)
		return
	}

	operation, err := utils.GetOperationAST(document, payload.OperationName)
	if err != nil {
		c.fail(id, opLog, err)
		return
	}

	if operation == nil {
		c.fail(id, opLog, fmt.Errorf("unknown operation named %q", payload.OperationName))
		return
	}

	if operation.Operation == ast.OperationTypeSubscription {
		c.fail(id, opLog, fmt.Errorf("subscription operations are not supported"))
		return
	}

	params := &graphql.Params{
		Schema:         *c.schema,
		RequestString:  payload.Query,
		VariableValues: payload.Variables,
		OperationName:  payload.OperationName,
		Context:        ctx,
	}

	root := map[string]interface{}{}
	if c.config.RootValueFunc != nil {
		if r := c.config.RootValueFunc(c, operation); r != nil {
			root = r
		}
	}

	go c.execute(id, params, document, root, opLog)
}

// execute runs an operation and sends its result unless the client
// completed it in the meantime
func (c *wsConnection) execute(id string, params *graphql.Params, document *ast.Document, root map[string]interface{}, opLog *logger.LogWrapper) {
	result := graphql.Execute(graphql.ExecuteParams{
		Schema:        params.Schema,
		Root:          root,
		AST:           document,
		OperationName: params.OperationName,
		Args:          params.VariableValues,
		Context:       params.Context,
	})

	if c.config.OnResult != nil {
		c.config.OnResult(params.Context, params, result)
	}

	if !c.mgr.Has(id) {
		opLog.Debugf("operation completed by client, dropping result")
		return
	}

	c.sendMessage(protocol.OperationMessage{
		ID:   id,
		Type: protocol.MsgNext,
		Payload: protocol.ExecutionResult{
			Errors:     result.Errors,
			Data:       result.Data,
			Extensions: result.Extensions,
		},
	})

	if c.mgr.Remove(id) != nil {
		c.sendMessage(protocol.OperationMessage{
			ID:   id,
			Type: protocol.MsgComplete,
		})
	}
	opLog.Tracef("operation finished, %d running", c.mgr.Count())
}

// fail sends the errors of an operation that could not be started
func (c *wsConnection) fail(id string, opLog *logger.LogWrapper, errs interface{}) {
	opLog.Debugf("operation rejected")
	c.mgr.Remove(id)
	c.sendError(id, errs)
}
