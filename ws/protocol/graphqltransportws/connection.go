package graphqltransportws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bhoriuchi/cf-graphql-server/logger"
	"github.com/bhoriuchi/cf-graphql-server/utils"
	"github.com/bhoriuchi/cf-graphql-server/ws/manager"
	"github.com/bhoriuchi/cf-graphql-server/ws/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

var (
	CloseDeadlineDuration time.Duration = 100 * time.Millisecond
)

// Config defines the configuration parameters of a
// GraphQL WebSocket connection.
type Config struct {
	WS                        *websocket.Conn
	Schema                    *graphql.Schema
	Logger                    *logger.LogWrapper
	Request                   *http.Request
	ConnectionInitWaitTimeout time.Duration

	// ContextFunc returns the execution context of one operation. Defaults
	// to the connection context.
	ContextFunc   func(c protocol.Context, msg SubscribeMessage) context.Context
	RootValueFunc func(c protocol.Context, op *ast.OperationDefinition) map[string]interface{}

	// OnConnect may return false to reject the connection or a payload to
	// send with the acknowledgement
	OnConnect func(c protocol.Context) (interface{}, error)
	OnPing    func(c protocol.Context, payload map[string]interface{})
	OnPong    func(c protocol.Context, payload map[string]interface{})
	OnClose   func(c protocol.Context, code CloseCode, reason string)

	// OnResult is called with every execution result before it is sent
	OnResult func(ctx context.Context, params *graphql.Params, result *graphql.Result)
}

// connState is the handshake state of a connection. It only moves forward:
// init received, then acknowledged, then closed.
type connState struct {
	mx           sync.RWMutex
	initReceived bool
	acknowledged bool
	closed       bool
	params       map[string]interface{}
}

// wsConnection is one graphql-transport-ws connection
type wsConnection struct {
	id       string
	ctx      context.Context
	ws       *websocket.Conn
	schema   *graphql.Schema
	config   Config
	log      *logger.LogWrapper
	outgoing chan protocol.OperationMessage
	done     chan struct{}
	mgr      *manager.Manager
	state    connState
}

// NewConnection establishes a GraphQL WebSocket connection. It implements
// the GraphQL WebSocket protocol by managing its internal state and handling
// the client-server communication.
func NewConnection(ctx context.Context, config Config) (*wsConnection, error) {
	if config.Schema == nil {
		return nil, fmt.Errorf("the GraphQL schema is not provided")
	}

	id := uuid.NewString()

	if config.Logger == nil {
		config.Logger = logger.NewNoopLogger()
	}

	if config.ConnectionInitWaitTimeout == 0 {
		config.ConnectionInitWaitTimeout = DefaultConnectionInitWaitTimeout
	}

	c := &wsConnection{
		id:       id,
		ctx:      ctx,
		ws:       config.WS,
		schema:   config.Schema,
		config:   config,
		log:      config.Logger.WithField("connectionId", id).WithField("subprotocol", Subprotocol),
		outgoing: make(chan protocol.OperationMessage, 16),
		done:     make(chan struct{}),
		mgr:      manager.NewManager(),
	}

	// validate the subprotocol
	if c.ws.Subprotocol() != Subprotocol {
		err := fmt.Errorf("subprotocol not acceptable")
		c.log.WithError(err).Errorf("failed to create connection")
		c.close(SubprotocolNotAcceptable, err.Error())
		return nil, err
	}

	c.log.Debugf("server accepted graphql subprotocol")

	// start the read and write loops
	go c.writeLoop()
	go c.readLoop()

	time.AfterFunc(config.ConnectionInitWaitTimeout, func() {
		if !c.ConnectionInitReceived() {
			c.close(ConnectionInitialisationTimeout, "Connection initialisation timeout")
		}
	})

	return c, nil
}

// ConnectionID returns the connection id
func (c *wsConnection) ConnectionID() string {
	return c.id
}

// Context returns the original connection request context
func (c *wsConnection) Context() context.Context {
	return c.ctx
}

func (c *wsConnection) ConnectionInitReceived() bool {
	c.state.mx.RLock()
	defer c.state.mx.RUnlock()
	return c.state.initReceived
}

func (c *wsConnection) Acknowledged() bool {
	c.state.mx.RLock()
	defer c.state.mx.RUnlock()
	return c.state.acknowledged
}

func (c *wsConnection) ConnectionParams() map[string]interface{} {
	c.state.mx.RLock()
	defer c.state.mx.RUnlock()
	return c.state.params
}

// receiveInit records the first connection_init. It returns false when one
// was already received.
func (c *wsConnection) receiveInit(params map[string]interface{}) bool {
	c.state.mx.Lock()
	defer c.state.mx.Unlock()

	if c.state.initReceived {
		return false
	}
	c.state.initReceived = true
	c.state.params = params
	return true
}

func (c *wsConnection) acknowledge() {
	c.state.mx.Lock()
	defer c.state.mx.Unlock()
	c.state.acknowledged = true
}

func (c *wsConnection) writeLoop() {
	// Close the WebSocket connection when leaving the write loop;
	// this ensures the read loop is also terminated and the connection
	// closed cleanly
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.outgoing:
			_ = c.ws.SetWriteDeadline(time.Now().Add(WriteTimeout))

			// Send the message to the client; if this times out, the WebSocket
			// connection will be corrupt, hence we need to close the write loop
			// and the connection immediately
			if err := c.ws.WriteJSON(msg); err != nil {
				c.log.WithError(err).Warnf("sending message failed")
				c.close(InternalServerError, "failed to send message")
				return
			}
		}
	}
}

func (c *wsConnection) readLoop() {
	// Close the WebSocket connection when leaving the read loop
	defer c.ws.Close()

	for {
		msg := protocol.RawMessage{}
		if err := c.ws.ReadJSON(&msg); err != nil {
			// look for a normal closure and exit
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || c.isClosed() {
				c.close(NormalClosure, "Client requested normal closure")
				break
			}

			c.log.WithError(err).Errorf("force closing connection")
			c.close(BadRequest, "Invalid message received")
			break
		}

		msgType, err := msg.Type()
		if err != nil {
			c.log.WithError(err).Errorf("failed to read message type")
			c.close(BadRequest, err.Error())
			break
		}

		switch msgType {
		case protocol.MsgConnectionInit:
			c.handleConnectionInit(msg)

		case protocol.MsgPing:
			c.handlePing(msg)

		case protocol.MsgPong:
			c.handlePong(msg)

		case protocol.MsgSubscribe:
			c.handleSubscribe(msg)

		case protocol.MsgComplete:
			c.handleComplete(msg)

		default:
			err := fmt.Errorf("unexpected message of type %q received", msgType)
			c.log.Errorf("%d: %s", BadRequest, err)
			c.close(BadRequest, err.Error())
		}

		if c.isClosed() {
			break
		}
	}

	c.log.Tracef("exiting read loop")
}

// sendMessage queues a message for the write loop. Messages sent after the
// connection closed are dropped.
func (c *wsConnection) sendMessage(msg protocol.OperationMessage) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

func (c *wsConnection) sendError(id string, errs interface{}) {
	c.sendMessage(protocol.OperationMessage{
		ID:      id,
		Type:    protocol.MsgError,
		Payload: utils.GQLErrors(errs),
	})
}

// close closes the socket with a control message
func (c *wsConnection) close(code CloseCode, reason string) {
	c.state.mx.Lock()
	if c.state.closed {
		c.state.mx.Unlock()
		return
	}

	// mark as closed and stop outbound messages
	c.state.closed = true
	close(c.done)
	c.state.mx.Unlock()

	closeMsg := websocket.FormatCloseMessage(int(code), reason)
	deadline := time.Now().Add(CloseDeadlineDuration)

	if err := c.ws.WriteControl(websocket.CloseMessage, closeMsg, deadline); err != nil && err != websocket.ErrCloseSent {
		c.log.WithError(err).Debugf("failed to write close control message to websocket, force closing")
	}
	_ = c.ws.Close()

	c.log.WithField("code", code).Debugf("closed connection with %q", reason)

	// cancel running operations
	c.mgr.RemoveAll()

	if c.config.OnClose != nil {
		c.config.OnClose(c, code, reason)
	}
}

// isClosed returns true if the connection is closed
func (c *wsConnection) isClosed() bool {
	c.state.mx.RLock()
	defer c.state.mx.RUnlock()
	return c.state.closed
}
