package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/c360/maxbridge/orchestrator"
	"github.com/c360/maxbridge/security"
	"github.com/c360/maxbridge/state"
	"github.com/c360/maxbridge/statesync"
	"github.com/c360/maxbridge/transport"
	"github.com/c360/maxbridge/transport/websocket"
)

// Wire addresses. The /claude namespace carries LLM-side commands, the
// /max namespace carries state traffic from the Max side, and /mcp/status
// carries bridge status lines.
const (
	addrPing      = "/claude/ping"
	addrPong      = "/claude/pong"
	addrGetStatus = "/claude/get_status"
	addrStatus    = "/claude/status"
	addrRoute     = "/claude/route"
	addrError     = "/claude/error"

	addrStateChange  = "/max/state/change"
	addrStateSync    = "/max/state/sync"
	addrSyncResponse = "/max/state/sync_response"
	addrSyncError    = "/max/state/sync_error"
	addrDiffSync     = "/max/state/diff_sync"
	addrDiffResponse = "/max/state/diff_response"
	addrStateSave    = "/max/state/save"
	addrSaveResponse = "/max/state/save_response"
	addrStateLoad    = "/max/state/load"
	addrLoadResponse = "/max/state/load_response"
	addrStateResolve = "/max/state/resolve"
	addrLifecycle    = "/max/lifecycle"
	addrCommand      = "/max/command"

	addrBridgeStatus = "/mcp/status"
)

// bridge ties the transport to the orchestrator and the state engine:
// inbound frames are routed by address, outbound notifications are
// broadcast to every connected client.
type bridge struct {
	orch   *orchestrator.Orchestrator
	engine *statesync.Engine
	server *websocket.Server
	policy *security.Policy

	storagePath string
	logger      *slog.Logger
}

// handleFrame routes one inbound frame. Failures are reported back to the
// sending client rather than tearing the connection down.
func (b *bridge) handleFrame(clientID string, msg transport.Message) {
	ctx := context.Background()

	switch msg.Address {
	case addrPing:
		b.sendTo(ctx, clientID, addrPong, msg.Args)

	case addrGetStatus:
		b.sendTo(ctx, clientID, addrStatus, []state.Value{jsonValue(b.orch.Status())})

	case addrRoute:
		b.handleRoute(ctx, clientID, msg.Args)

	case addrStateChange:
		b.handleStateChange(ctx, clientID, msg.Args)

	case addrStateSync:
		b.handleStateSync(ctx, clientID, msg.Args)

	case addrDiffSync:
		b.handleDiffSync(ctx, clientID, msg.Args)

	case addrStateSave:
		b.handleStateSave(ctx, clientID, msg.Args)

	case addrStateLoad:
		b.handleStateLoad(ctx, clientID, msg.Args)

	case addrStateResolve:
		b.handleStateResolve(ctx, clientID, msg.Args)

	case addrLifecycle:
		if event, ok := argString(msg.Args, 0); ok {
			if err := b.orch.HandleLifecycleEvent(ctx, event); err != nil {
				b.replyError(ctx, clientID, "lifecycle", err)
			}
		}

	default:
		b.logger.Debug("unhandled address", "client", clientID, "address", msg.Address)
	}
}

// handleRoute admits a message into the orchestrator. Frame layout:
// source, destination, command, priority, then the command args.
func (b *bridge) handleRoute(ctx context.Context, clientID string, args []state.Value) {
	source, ok1 := argString(args, 0)
	destination, ok2 := argString(args, 1)
	command, ok3 := argString(args, 2)
	if !ok1 || !ok2 || !ok3 {
		b.logger.Warn("malformed route frame", "client", clientID, "args", len(args))
		return
	}

	if err := b.policy.ValidateCommand(command); err != nil {
		b.replyError(ctx, clientID, "route", err)
		return
	}

	src, err := orchestrator.ParseChannel(source)
	if err != nil {
		b.replyError(ctx, clientID, "route", err)
		return
	}
	dst, err := orchestrator.ParseChannel(destination)
	if err != nil {
		b.replyError(ctx, clientID, "route", err)
		return
	}

	priority := 0
	if p, ok := argInt(args, 3); ok {
		priority = int(p)
	}
	var rest []state.Value
	if len(args) > 4 {
		rest = args[4:]
	}

	if err := b.orch.Route(src, dst, command, rest, priority); err != nil {
		b.replyError(ctx, clientID, "route", err)
	}
}

// handleStateChange applies one state mutation. Frame layout: category,
// event type, object id, then the payload object.
func (b *bridge) handleStateChange(ctx context.Context, clientID string, args []state.Value) {
	category, ok1 := argString(args, 0)
	eventType, ok2 := argString(args, 1)
	objectID, ok3 := argString(args, 2)
	if !ok1 || !ok2 || !ok3 {
		b.logger.Warn("malformed state change frame", "client", clientID, "args", len(args))
		return
	}

	data := state.Null()
	if len(args) > 3 {
		data = args[3]
	}

	if err := b.engine.ProcessStateChange(category, eventType, objectID, data); err != nil {
		b.replyError(ctx, clientID, "state_change", err)
	}
}

// handleStateSync answers a sync request on the sending client. Frame
// layout: request id, category, target id.
func (b *bridge) handleStateSync(ctx context.Context, clientID string, args []state.Value) {
	requestID, ok := argString(args, 0)
	if !ok {
		b.logger.Warn("sync frame missing request id", "client", clientID)
		return
	}
	category, _ := argString(args, 1)
	targetID, _ := argString(args, 2)

	resp, err := b.engine.HandleSyncRequest(requestID, category, targetID)
	if err != nil {
		b.sendTo(ctx, clientID, addrSyncError,
			[]state.Value{jsonValue(statesync.NewSyncError(requestID, category, targetID, err))})
		return
	}
	b.sendTo(ctx, clientID, addrSyncResponse, []state.Value{jsonValue(resp)})
}

// handleDiffSync answers a differential sync request. Frame layout:
// request id, last-sync timestamp in milliseconds.
func (b *bridge) handleDiffSync(ctx context.Context, clientID string, args []state.Value) {
	requestID, ok := argString(args, 0)
	if !ok {
		b.logger.Warn("diff sync frame missing request id", "client", clientID)
		return
	}
	baseline, _ := argInt(args, 1)

	resp, err := b.engine.HandleDiffSync(requestID, baseline)
	if err != nil {
		b.replyError(ctx, clientID, "diff_sync", err)
		return
	}
	b.sendTo(ctx, clientID, addrDiffResponse, []state.Value{jsonValue(resp)})
}

// handleStateSave persists the session. Frame layout: request id, then an
// optional path overriding the configured storage path.
func (b *bridge) handleStateSave(ctx context.Context, clientID string, args []state.Value) {
	requestID, ok := argString(args, 0)
	if !ok {
		requestID = "manual"
	}
	path := b.storagePath
	if p, ok := argString(args, 1); ok && p != "" {
		path = p
	}

	resp, err := b.engine.SaveState(requestID, path)
	if err != nil {
		b.replyError(ctx, clientID, "state_save", err)
		return
	}
	b.sendTo(ctx, clientID, addrSaveResponse, []state.Value{jsonValue(resp)})
}

// handleStateLoad replaces the session from disk.
func (b *bridge) handleStateLoad(ctx context.Context, clientID string, args []state.Value) {
	requestID, ok := argString(args, 0)
	if !ok {
		requestID = "manual"
	}
	path := b.storagePath
	if p, ok := argString(args, 1); ok && p != "" {
		path = p
	}

	resp, err := b.engine.LoadState(requestID, path)
	if err != nil {
		b.replyError(ctx, clientID, "state_load", err)
		return
	}
	b.sendTo(ctx, clientID, addrLoadResponse, []state.Value{jsonValue(resp)})
}

// handleStateResolve merges a remote snapshot into the session using the
// configured conflict policy. Frame layout: the remote state object.
func (b *bridge) handleStateResolve(ctx context.Context, clientID string, args []state.Value) {
	if len(args) == 0 {
		b.logger.Warn("resolve frame missing state payload", "client", clientID)
		return
	}
	if err := b.engine.ResolveRemoteState(args[0]); err != nil {
		b.replyError(ctx, clientID, "state_resolve", err)
	}
}

// broadcastStateChange publishes an applied mutation to every client
// under its /max/state/<category>/<eventType> address.
func (b *bridge) broadcastStateChange(change state.StateChange) {
	payload, err := change.NotificationJSON()
	if err != nil {
		b.logger.Error("encode state notification", "error", err)
		return
	}
	var v state.Value
	if err := json.Unmarshal(payload, &v); err != nil {
		b.logger.Error("decode state notification", "error", err)
		return
	}
	b.broadcast(change.OSCAddress(), []state.Value{v})
}

// broadcastCommand publishes a processed routing record.
func (b *bridge) broadcastCommand(record []state.Value) {
	b.broadcast(addrCommand, record)
}

// broadcastStatus publishes an orchestrator status line.
func (b *bridge) broadcastStatus(status string) {
	b.broadcast(addrBridgeStatus, []state.Value{state.String(status)})
}

func (b *bridge) broadcast(address string, args []state.Value) {
	msg := transport.Message{Address: address, Args: args}
	if err := b.server.Broadcast(context.Background(), msg); err != nil {
		b.logger.Warn("broadcast failed", "address", address, "error", err)
	}
}

func (b *bridge) sendTo(ctx context.Context, clientID, address string, args []state.Value) {
	msg := transport.Message{Address: address, Args: args}
	if err := b.server.SendTo(ctx, clientID, msg); err != nil {
		b.logger.Warn("targeted send failed", "client", clientID, "address", address, "error", err)
	}
}

// replyError reports a handler failure to the sending client.
func (b *bridge) replyError(ctx context.Context, clientID, op string, err error) {
	b.logger.Warn("frame handling failed", "client", clientID, "op", op, "error", err)
	b.sendTo(ctx, clientID, addrError,
		[]state.Value{state.String(op), state.String(err.Error())})
}

// argString extracts a string argument by position.
func argString(args []state.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	return args[i].AsString()
}

// argInt extracts an integer argument by position, accepting whole floats
// from clients that only speak doubles.
func argInt(args []state.Value, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	if n, ok := args[i].AsInt(); ok {
		return n, true
	}
	if f, ok := args[i].AsFloat(); ok {
		return int64(f), true
	}
	return 0, false
}

// jsonValue converts a response struct into a frame argument.
func jsonValue(v any) state.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return state.Null()
	}
	var out state.Value
	if err := json.Unmarshal(data, &out); err != nil {
		return state.Null()
	}
	return out
}
