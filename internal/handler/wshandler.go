package handler

// wshandler is code for handling websockets for subscriptions.  It supports both commonly used WS protocols
// * subscriptions-transport-ws: early protocol from Apollo for subscriptions (sub-protocol name:graphql-ws)
// * graphql-ws is the newer ws transport which can handle query/mutation/subscription (sub-protocol name:graphql-transport-ws).

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/dolmen-go/jsonmap"
	"github.com/gorilla/websocket"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"go.uber.org/zap"
)

const (
	protocolOld = "graphql-ws"           // subscriptions-transport-ws
	protocolNew = "graphql-transport-ws" // graphql-ws

	// close codes (graphql-transport-ws)
	closeBadMessage   = 4400
	closeUnauthorized = 4401
	closeForbidden    = 4403
	closeInitTimeout  = 4408
	closeDuplicateID  = 4409
	closeTooManyInit  = 4429
)

type (
	wsConnection struct {
		*websocket.Conn // handle for WS communications

		h           *Handler // we need this for the schema etc
		newProtocol bool     // default to old
		writeMu     sync.Mutex
		pong        chan struct{}  // signalled when a pong is received
		wg          sync.WaitGroup // tracks subscription go routines

		// cancelSubscription keeps track of the cancel function associated with each operation.
		//  map key = ID that identifies the operation
		//  map value = context.CancelFunc that will terminate the operation (ie kill all subscription processing)
		mu                 sync.Mutex
		cancelSubscription map[string]context.CancelFunc
	}

	// wsMessage is a message received from the client
	wsMessage struct {
		Type    string          `json:"type"`
		ID      string          `json:"id,omitempty"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	// wsReply is a message sent to the client
	wsReply struct {
		Type    string      `json:"type"`
		ID      string      `json:"id,omitempty"`
		Payload interface{} `json:"payload,omitempty"`
	}
)

// errBadMessage is returned when a message from the client is not valid JSON
var errBadMessage = errors.New("invalid message")

var upgrader = websocket.Upgrader{
	CheckOrigin:  func(r *http.Request) bool { return true },
	Subprotocols: []string{protocolNew, protocolOld},
}

// serveWS is called in response to a GraphQL HTTP request wanting to upgrade to a WS.
// It handles subscription (and, for the new protocol, query/mutation) requests and sends a stream of responses.
func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return // nothing else required here as w's HTTP status has already been set
	}
	c := &wsConnection{
		Conn:               conn,
		h:                  h,
		newProtocol:        conn.Subprotocol() == protocolNew,
		pong:               make(chan struct{}, 1),
		cancelSubscription: make(map[string]context.CancelFunc, 1),
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		c.wg.Wait()
		if err := c.Close(); err != nil {
			h.log.Debug("websocket close", zap.Error(err))
		}
	}()

	// http.Server.Shutdown ignores hijacked connections, so close when the request context ends
	go func() {
		<-ctx.Done()
		if r.Context().Err() != nil {
			c.closeWith(websocket.CloseGoingAway, "server shutting down")
			_ = c.Conn.Close()
		}
	}()

	ctx, ok := c.init(ctx, r.Header.Get("Authorization"))
	if !ok {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.keepAlive(ctx)
	}()

	for {
		msg, err := c.read()
		if err != nil {
			if errors.Is(err, errBadMessage) {
				c.closeWith(closeBadMessage, "invalid message")
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read", zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "subscribe", "start":
			if (msg.Type == "subscribe") != c.newProtocol {
				c.closeWith(closeBadMessage, "unexpected message type "+msg.Type)
				return
			}
			if !c.start(ctx, msg) {
				return
			}
		case "complete", "stop":
			c.stop(msg.ID)
		case "ping":
			_ = c.send(wsReply{Type: "pong"})
		case "pong":
			select {
			case c.pong <- struct{}{}:
			default:
			}
		case "connection_init":
			c.closeWith(closeTooManyInit, "too many initialisation requests")
			return
		case "connection_terminate":
			c.closeWith(websocket.CloseNormalClosure, "")
			return
		default:
			c.closeWith(closeBadMessage, "unexpected message type "+msg.Type)
			return
		}
	}
}

// init waits for the connection_init message, authenticates the connection and acknowledges it.
// The Authorization value may come from the upgrade request or from the init payload.
func (c *wsConnection) init(ctx context.Context, authorization string) (context.Context, bool) {
	if c.h.initialTimeout > 0 {
		_ = c.SetReadDeadline(time.Now().Add(c.h.initialTimeout))
	}
	msg, err := c.read()
	_ = c.SetReadDeadline(time.Time{})
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, errBadMessage):
			c.closeWith(closeBadMessage, "invalid connection_init message")
		case errors.As(err, &netErr) && netErr.Timeout():
			c.closeWith(closeInitTimeout, "connection initialisation timeout")
		default:
			c.h.log.Debug("websocket read", zap.Error(err))
		}
		return ctx, false
	}

	switch msg.Type {
	case "connection_init":
	case "connection_terminate":
		c.closeWith(websocket.CloseNormalClosure, "")
		return ctx, false
	default:
		c.refuse(closeUnauthorized, "unauthorized")
		return ctx, false
	}

	if s := payloadAuthorization(msg.Payload); s != "" {
		authorization = s
	}
	ctx, err = c.h.requestContext(ctx, authorization)
	if err != nil {
		c.h.log.Debug("websocket connection refused", zap.Error(err))
		c.refuse(closeForbidden, "forbidden: "+err.Error())
		return ctx, false
	}

	if err := c.send(wsReply{Type: "connection_ack"}); err != nil {
		return ctx, false
	}
	if !c.newProtocol {
		_ = c.send(wsReply{Type: "ka"})
	}
	return ctx, true
}

// refuse rejects the connection - with a close code (new protocol) or a connection_error message (old protocol)
func (c *wsConnection) refuse(code int, text string) {
	if c.newProtocol {
		c.closeWith(code, text)
		return
	}
	_ = c.send(wsReply{Type: "connection_error", Payload: map[string]interface{}{"message": text}})
	c.closeWith(websocket.ClosePolicyViolation, text)
}

// payloadAuthorization finds a bearer credential in the connection_init payload (connection params)
func payloadAuthorization(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var params map[string]interface{}
	if err := json.Unmarshal(payload, &params); err != nil {
		return ""
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if s, ok := params[key].(string); ok && s != "" {
			return s
		}
	}
	if s, ok := params["authToken"].(string); ok && s != "" {
		if !strings.HasPrefix(strings.ToLower(s), "bearer ") {
			s = "Bearer " + s
		}
		return s
	}
	return ""
}

// keepAlive periodically sends a "ka" (old protocol) or a "ping" (new protocol), and for the new protocol
// closes the connection if a "pong" is not received in time
func (c *wsConnection) keepAlive(ctx context.Context) {
	if c.h.pingFrequency <= 0 {
		return
	}
	ticker := time.NewTicker(c.h.pingFrequency)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !c.newProtocol {
			if c.send(wsReply{Type: "ka"}) != nil {
				return
			}
			continue
		}
		if c.send(wsReply{Type: "ping"}) != nil {
			return
		}
		if c.h.pongTimeout <= 0 {
			continue
		}
		timer := time.NewTimer(c.h.pongTimeout)
		select {
		case <-c.pong:
			timer.Stop()
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			c.h.log.Debug("websocket pong timeout")
			_ = c.Conn.Close() // unblocks the read loop which cleans up
			return
		}
	}
}

// read gets the next message from the client
func (c *wsConnection) read() (*wsMessage, error) {
	_, reader, err := c.NextReader()
	if err != nil {
		return nil, err
	}
	var msg wsMessage
	if err := json.NewDecoder(reader).Decode(&msg); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadMessage, err)
	}
	return &msg, nil
}

// send writes a message to the client (writes from different go routines are serialised)
func (c *wsConnection) send(reply wsReply) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.WriteJSON(reply)
}

// closeWith sends a close message with a code and reason
func (c *wsConnection) closeWith(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}

// start begins processing a subscribe/start message in its own go routine, returning false if the
// connection must be closed
func (c *wsConnection) start(ctx context.Context, msg *wsMessage) bool {
	if msg.ID == "" || len(msg.Payload) == 0 {
		c.closeWith(closeBadMessage, "subscribe requires an id and a payload")
		return false
	}
	g := gqlRequest{h: c.h}
	decoder := json.NewDecoder(bytes.NewReader(msg.Payload))
	decoder.UseNumber()
	if err := decoder.Decode(&g); err != nil {
		c.closeWith(closeBadMessage, "invalid payload: "+err.Error())
		return false
	}
	FixNumberVariables(g.Variables)

	c.mu.Lock()
	if _, ok := c.cancelSubscription[msg.ID]; ok {
		c.mu.Unlock()
		c.closeWith(closeDuplicateID, "subscriber for "+msg.ID+" already exists")
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancelSubscription[msg.ID] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.finish(msg.ID)
		c.run(ctx, msg.ID, &g)
	}()
	return true
}

// stop is called when the client completes (stops) an operation
func (c *wsConnection) stop(id string) {
	c.mu.Lock()
	cancel, ok := c.cancelSubscription[id]
	delete(c.cancelSubscription, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	if !c.newProtocol {
		_ = c.send(wsReply{Type: "complete", ID: id})
	}
}

// finish releases an operation once its go routine is done
func (c *wsConnection) finish(id string) {
	c.mu.Lock()
	cancel, ok := c.cancelSubscription[id]
	delete(c.cancelSubscription, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// run executes one operation sending the result(s) to the client
func (c *wsConnection) run(ctx context.Context, id string, g *gqlRequest) {
	op, operation, errs := g.prepare()
	if errs != nil {
		c.sendErrors(id, errs)
		return
	}
	if operation.Operation != ast.Subscription {
		result := op.execute(ctx, operation)
		if ctx.Err() != nil {
			return // stopped by the client
		}
		if c.send(c.next(id, result)) == nil {
			_ = c.send(wsReply{Type: "complete", ID: id})
		}
		return
	}
	c.subscribe(ctx, id, op, operation)
}

// subscribe calls the subscription resolver to get a channel then sends every value received
// on the channel (resolved using the selection set of the subscription) until the channel is
// closed (whence "complete" is sent) or the operation is cancelled
func (c *wsConnection) subscribe(ctx context.Context, id string, op *gqlOperation, operation *ast.OperationDefinition) {
	if c.h.subscriptionData == nil || c.h.schema.Subscription == nil {
		c.sendErrors(id, gqlerror.List{gqlerror.Errorf("subscriptions are not supported")})
		return
	}
	fields := op.collectFields(operation.SelectionSet, c.h.schema.Subscription.Name)
	if len(fields) != 1 {
		c.sendErrors(id, gqlerror.List{gqlerror.Errorf("a subscription must select exactly one field")})
		return
	}
	astField := fields[0]
	name := alias(astField)
	path := ast.Path{ast.PathName(name)}

	v := reflect.ValueOf(c.h.subscriptionData)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	resolver, ok := c.h.lookup(v.Type(), astField.Name)
	if !ok {
		c.sendErrors(id, gqlerror.List{gqlerror.ErrorPathf(path, "no resolver found for subscription %q", astField.Name)})
		return
	}
	ch := v.Field(resolver.index)
	if resolver.info.IsFunc {
		if ch.IsNil() {
			c.sendErrors(id, gqlerror.List{gqlerror.ErrorPathf(path, "resolver for subscription %q is nil", astField.Name)})
			return
		}
		var err error
		if ch, err = op.fromFunc(ctx, astField, ch, resolver.info); err != nil {
			c.sendErrors(id, gqlerror.List{toGQLError(err, path)})
			return
		}
	}
	for ch.Kind() == reflect.Ptr || ch.Kind() == reflect.Interface {
		ch = ch.Elem()
	}
	if ch.Kind() != reflect.Chan || ch.IsNil() {
		c.sendErrors(id, gqlerror.List{gqlerror.ErrorPathf(path, "subscription %q did not return a channel", astField.Name)})
		return
	}

	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		{Dir: reflect.SelectRecv, Chan: ch},
	}
	for {
		chosen, event, ok := reflect.Select(cases)
		if chosen == 0 {
			return // cancelled
		}
		if !ok {
			_ = c.send(wsReply{Type: "complete", ID: id})
			return
		}
		var result gqlResult
		value, err := op.resolveValue(c.h.opContext(ctx), astField, astField.Definition.Type, event, path)
		if err != nil {
			result.Errors = gqlerror.List{toGQLError(err, path)}
		} else {
			result.Data = jsonmap.Ordered{Data: map[string]interface{}{name: value}, Order: []string{name}}
		}
		if err := c.send(c.next(id, result)); err != nil {
			c.h.log.Debug("websocket write", zap.Error(err))
			return
		}
	}
}

// next makes a message containing a result - "next" (new protocol) or "data" (old protocol)
func (c *wsConnection) next(id string, result gqlResult) wsReply {
	if c.newProtocol {
		return wsReply{Type: "next", ID: id, Payload: result}
	}
	return wsReply{Type: "data", ID: id, Payload: result}
}

// sendErrors reports an operation that could not be started
func (c *wsConnection) sendErrors(id string, errs gqlerror.List) {
	if c.newProtocol {
		_ = c.send(wsReply{Type: "error", ID: id, Payload: errs})
		return
	}
	_ = c.send(wsReply{Type: "error", ID: id, Payload: gqlResult{Errors: errs}})
}
