package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/futarchy-labs/futarchyd/internal/events"
)

// StreamAll subscribes a connection to every event type.
const StreamAll = "all"

// knownStreams are the subscribable event streams.
var knownStreams = map[string]bool{
	StreamAll:                            true,
	string(events.TypeProposalQueued):    true,
	string(events.TypeProposalEvicted):   true,
	string(events.TypeProposalActivated): true,
	string(events.TypeProposalFinalized): true,
	string(events.TypeSwap):              true,
	string(events.TypeLiquidityAdded):    true,
	string(events.TypeLiquidityRemoved):  true,
	string(events.TypeSubsidyCranked):    true,
	string(events.TypeSubsidyFinalized):  true,
}

// WebSocketServer handles WebSocket connections for real-time subscriptions
type WebSocketServer struct {
	upgrader         websocket.Upgrader
	methodRegistry   *MethodRegistry
	connections      map[string]*WebSocketConnection
	connectionsMutex sync.RWMutex
	timeout          time.Duration
}

// WebSocketConnection represents a single WebSocket connection
type WebSocketConnection struct {
	ID            string
	conn          *websocket.Conn
	subscriptions map[string]bool
	sendChannel   chan []byte
	mutex         sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWebSocketServer creates a WebSocket server sharing the node's registry.
func NewWebSocketServer(node *Node, timeout time.Duration) *WebSocketServer {
	ws := &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		methodRegistry: NewMethodRegistry(),
		connections:    make(map[string]*WebSocketConnection),
		timeout:        timeout,
	}
	registerAllMethods(ws.methodRegistry, node)
	return ws
}

// ServeHTTP handles WebSocket upgrade requests
func (ws *WebSocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	wsConn := &WebSocketConnection{
		ID:            generateConnectionID(),
		conn:          conn,
		subscriptions: make(map[string]bool),
		sendChannel:   make(chan []byte, 256),
		ctx:           ctx,
		cancel:        cancel,
	}

	ws.connectionsMutex.Lock()
	ws.connections[wsConn.ID] = wsConn
	ws.connectionsMutex.Unlock()

	go ws.handleConnection(wsConn)
	go ws.handleSend(wsConn)
}

// handleConnection processes messages from a WebSocket connection
func (ws *WebSocketServer) handleConnection(wsConn *WebSocketConnection) {
	defer ws.closeConnection(wsConn)

	wsConn.conn.SetReadLimit(512 * 1024)
	wsConn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	wsConn.conn.SetPongHandler(func(string) error {
		wsConn.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := wsConn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		ws.handleMessage(wsConn, message)
	}
}

// handleSend processes outgoing messages for a WebSocket connection
func (ws *WebSocketServer) handleSend(wsConn *WebSocketConnection) {
	// Pings keep the read deadline on the peer alive
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-wsConn.ctx.Done():
			return
		case <-ticker.C:
			wsConn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := wsConn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case message := <-wsConn.sendChannel:
			wsConn.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := wsConn.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket send failed: %v", err)
				return
			}
		}
	}
}

// handleMessage processes a single message from WebSocket
func (ws *WebSocketServer) handleMessage(wsConn *WebSocketConnection, message []byte) {
	// Command and params live at the top level of the message
	var cmdMap map[string]interface{}
	if err := json.Unmarshal(message, &cmdMap); err != nil {
		ws.sendError(wsConn, RpcErrorInvalidParams("Invalid JSON: "+err.Error()), nil)
		return
	}

	command, ok := cmdMap["command"].(string)
	if !ok || command == "" {
		ws.sendError(wsConn, NewRpcError(RpcMISSING_COMMAND, "missingCommand", "missingCommand", "Missing command field"), nil)
		return
	}

	var id interface{}
	if idVal, exists := cmdMap["id"]; exists {
		id = idVal
	}

	cmd := WebSocketCommand{
		Command: command,
		ID:      id,
	}

	delete(cmdMap, "command")
	delete(cmdMap, "id")

	apiVersion := DefaultApiVersion
	if apiVer, exists := cmdMap["api_version"]; exists {
		if ver, ok := apiVer.(float64); ok {
			apiVersion = int(ver)
		}
		delete(cmdMap, "api_version")
	}

	if len(cmdMap) > 0 {
		paramsBytes, _ := json.Marshal(cmdMap)
		cmd.Params = paramsBytes
	}

	rpcCtx := &RpcContext{
		Context:    wsConn.ctx,
		Role:       RoleGuest,
		ApiVersion: apiVersion,
		IsAdmin:    false,
	}

	switch cmd.Command {
	case "subscribe":
		ws.handleSubscribe(wsConn, rpcCtx, cmd)
		return
	case "unsubscribe":
		ws.handleUnsubscribe(wsConn, rpcCtx, cmd)
		return
	}

	ws.handleRPCMethod(wsConn, rpcCtx, cmd)
}

func parseStreams(params json.RawMessage) ([]string, *RpcError) {
	var request SubscriptionRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &request); err != nil {
			return nil, RpcErrorInvalidParams("Invalid subscription parameters")
		}
	}
	if len(request.Streams) == 0 {
		request.Streams = []string{StreamAll}
	}
	for _, stream := range request.Streams {
		if !knownStreams[stream] {
			return nil, NewRpcError(RpcSTREAM_MALFORMED, "malformedStream", "malformedStream", "Unknown stream: "+stream)
		}
	}
	return request.Streams, nil
}

// handleSubscribe processes subscribe commands
func (ws *WebSocketServer) handleSubscribe(wsConn *WebSocketConnection, ctx *RpcContext, cmd WebSocketCommand) {
	streams, rpcErr := parseStreams(cmd.Params)
	if rpcErr != nil {
		ws.sendError(wsConn, rpcErr, cmd.ID)
		return
	}

	wsConn.mutex.Lock()
	for _, stream := range streams {
		wsConn.subscriptions[stream] = true
	}
	wsConn.mutex.Unlock()

	ws.sendResponse(wsConn, WebSocketResponse{
		Type:       "response",
		ID:         cmd.ID,
		Status:     "success",
		Result:     map[string]interface{}{"subscribed": streams},
		ApiVersion: ctx.ApiVersion,
	})
}

// handleUnsubscribe processes unsubscribe commands
func (ws *WebSocketServer) handleUnsubscribe(wsConn *WebSocketConnection, ctx *RpcContext, cmd WebSocketCommand) {
	streams, rpcErr := parseStreams(cmd.Params)
	if rpcErr != nil {
		ws.sendError(wsConn, rpcErr, cmd.ID)
		return
	}

	wsConn.mutex.Lock()
	for _, stream := range streams {
		delete(wsConn.subscriptions, stream)
	}
	wsConn.mutex.Unlock()

	ws.sendResponse(wsConn, WebSocketResponse{
		Type:       "response",
		ID:         cmd.ID,
		Status:     "success",
		Result:     map[string]interface{}{"unsubscribed": streams},
		ApiVersion: ctx.ApiVersion,
	})
}

// handleRPCMethod processes regular RPC method calls over WebSocket
func (ws *WebSocketServer) handleRPCMethod(wsConn *WebSocketConnection, ctx *RpcContext, cmd WebSocketCommand) {
	handler, exists := ws.methodRegistry.Get(cmd.Command)
	if !exists {
		ws.sendError(wsConn, RpcErrorMethodNotFound(cmd.Command), cmd.ID)
		return
	}

	if ctx.Role < handler.RequiredRole() {
		ws.sendError(wsConn, NewRpcError(RpcCOMMAND_UNTRUSTED, "commandUntrusted", "commandUntrusted",
			fmt.Sprintf("Command '%s' requires higher privileges", cmd.Command)), cmd.ID)
		return
	}

	result, rpcErr := handler.Handle(ctx, cmd.Params)
	if rpcErr != nil {
		ws.sendError(wsConn, rpcErr, cmd.ID)
		return
	}
	ws.sendResponse(wsConn, WebSocketResponse{
		Type:       "response",
		ID:         cmd.ID,
		Status:     "success",
		Result:     result,
		ApiVersion: ctx.ApiVersion,
	})
}

// sendResponse sends a WebSocket response
func (ws *WebSocketServer) sendResponse(wsConn *WebSocketConnection, response WebSocketResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("Failed to marshal WebSocket response: %v", err)
		return
	}
	ws.send(wsConn, data)
}

// sendError sends an error response with flat error fields
func (ws *WebSocketServer) sendError(wsConn *WebSocketConnection, rpcErr *RpcError, id interface{}) {
	response := map[string]interface{}{
		"type":          "response",
		"status":        "error",
		"error":         rpcErr.ErrorString,
		"error_code":    rpcErr.Code,
		"error_message": rpcErr.Message,
	}
	if id != nil {
		response["id"] = id
	}

	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("Failed to marshal WebSocket error response: %v", err)
		return
	}
	ws.send(wsConn, data)
}

func (ws *WebSocketServer) send(wsConn *WebSocketConnection, data []byte) {
	select {
	case wsConn.sendChannel <- data:
	case <-wsConn.ctx.Done():
	default:
		// Channel full, close connection
		log.Printf("WebSocket send channel full, closing connection %s", wsConn.ID)
		ws.closeConnection(wsConn)
	}
}

// closeConnection closes a WebSocket connection
func (ws *WebSocketServer) closeConnection(wsConn *WebSocketConnection) {
	wsConn.cancel()

	ws.connectionsMutex.Lock()
	delete(ws.connections, wsConn.ID)
	ws.connectionsMutex.Unlock()

	wsConn.conn.Close()
}

// Broadcast sends an event to every connection subscribed to its stream.
func (ws *WebSocketServer) Broadcast(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("Failed to marshal broadcast event: %v", err)
		return
	}

	// Flatten the event fields next to the stream type
	var message map[string]interface{}
	if err := json.Unmarshal(payload, &message); err != nil {
		return
	}
	message["type"] = string(ev.EventType())

	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	stream := string(ev.EventType())

	ws.connectionsMutex.RLock()
	defer ws.connectionsMutex.RUnlock()

	for _, conn := range ws.connections {
		conn.mutex.RLock()
		subscribed := conn.subscriptions[stream] || conn.subscriptions[StreamAll]
		conn.mutex.RUnlock()
		if !subscribed {
			continue
		}
		select {
		case conn.sendChannel <- data:
		default:
			// Channel full, skip this connection
			log.Printf("Skipping slow WebSocket connection %s", conn.ID)
		}
	}
}

var connectionCounter uint64
var connectionCounterMutex sync.Mutex

func generateConnectionID() string {
	connectionCounterMutex.Lock()
	connectionCounter++
	n := connectionCounter
	connectionCounterMutex.Unlock()
	return fmt.Sprintf("conn_%d_%d", time.Now().UnixNano(), n)
}
