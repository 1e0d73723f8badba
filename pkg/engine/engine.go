// Package engine walks automation graphs node by node, pausing on user
// replies and scheduled delays, and records every attempt in the execution
// log.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zaplane/zaplane/pkg/eventbus"
	"github.com/zaplane/zaplane/pkg/events"
	"github.com/zaplane/zaplane/pkg/flow"
	"github.com/zaplane/zaplane/pkg/models"
	"github.com/zaplane/zaplane/pkg/otelhelper"
	"github.com/zaplane/zaplane/pkg/persistence"
	"github.com/zaplane/zaplane/pkg/protocol"
	"github.com/zaplane/zaplane/pkg/registry"
)

// Terminal reason strings surfaced to operators. These are part of the API
// contract; dashboards filter on them verbatim.
const (
	ReasonNoStartNode     = "No start node found"
	ReasonAmbiguousEntry  = "Multiple start nodes found"
	ReasonAllNodesDone    = "All nodes executed successfully"
	ReasonConditionNotMet = "Condition not met and no alternative path"
	ReasonReplyTimeout    = "Execution timed out waiting for user response"
	ReasonCancelled       = "cancelled by user"
	ReasonPendingConflict = "conversation already has a pending response wait"
)

// Engine runs automation executions. It owns the node dispatch loop, the
// pending-response registry and delayed-continuation scheduling; trigger
// routing lives in Dispatcher.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	deps        protocol.Deps
	pending     *PendingRegistry
	bus         eventbus.EventPublisher
	tracer      trace.Tracer

	mu       sync.Mutex
	timers   map[string]*time.Timer // execution id -> delay timer
	inFlight map[string]bool        // executions currently being resumed
}

func NewEngine(
	p persistence.Persistence,
	reg *registry.Registry,
	deps protocol.Deps,
	bus eventbus.EventPublisher,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		persistence: p,
		registry:    reg,
		deps:        deps,
		pending:     NewPendingRegistry(p.PendingWaitRepository(), logger),
		bus:         bus,
		tracer:      tracer,
		timers:      make(map[string]*time.Timer),
		inFlight:    make(map[string]bool),
	}
}

// Pending exposes the pending-response registry.
func (e *Engine) Pending() *PendingRegistry {
	return e.pending
}

// UsePendingStore swaps the durable pending-wait store, e.g. for the
// Redis-backed one. Must be called before Restore.
func (e *Engine) UsePendingStore(repo persistence.PendingWaitRepository) {
	e.pending = NewPendingRegistry(repo, e.logger)
}

// Restore reloads pending waits from the durable store. Overdue delayed
// continuations are picked up by the sweeper's first pass.
func (e *Engine) Restore(ctx context.Context) error {
	return e.pending.Restore(ctx)
}

// StartExecution creates an execution row for the automation and walks its
// graph from the entry node until the flow ends, fails, or parks on a
// user_reply or time_gap node.
func (e *Engine) StartExecution(
	ctx context.Context,
	automation *models.Automation,
	conversationID, contactID string,
	payload map[string]any,
) (*models.Execution, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.start_execution",
		attribute.String(otelhelper.AutomationIDKey, automation.ID),
		attribute.String(otelhelper.ConversationIDKey, conversationID),
		attribute.String(otelhelper.TriggerKey, string(automation.Trigger)),
	)
	defer span.End()

	now := time.Now().UTC()
	execution := &models.Execution{
		ID:             uuid.New().String(),
		AutomationID:   automation.ID,
		ContactID:      contactID,
		ConversationID: conversationID,
		TriggerPayload: payload,
		Status:         models.ExecutionStatusRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.persistence.ExecutionRepository().Create(ctx, execution); err != nil {
		otelhelper.SetError(span, err)

		return nil, persistence.NewExecutionError("Create", execution.ID, err)
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, execution.ID))

	e.logger.InfoContext(ctx, "Execution started",
		"execution_id", execution.ID,
		"automation_id", automation.ID,
		"conversation_id", conversationID,
		"trigger", automation.Trigger)

	e.publish(ctx, conversationID, events.ExecutionStarted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStartedEvent, automation.ID, conversationID),
		ExecutionID: execution.ID,
		Trigger:     string(automation.Trigger),
		Payload:     payload,
	})

	if err := e.persistence.AutomationRepository().IncrementExecutionCount(ctx, automation.ID, now); err != nil {
		e.logger.WarnContext(ctx, "Failed to bump execution counter",
			"automation_id", automation.ID, "error", err)
	}

	graph := flow.NewGraph(automation.Nodes, automation.Edges)
	execCtx := e.seedContext(execution, payload)

	entry, err := graph.EntryNode()
	if err != nil {
		// A flow with no unambiguous entry is a builder defect, not a
		// runtime failure: record it and finish.
		reason := ReasonNoStartNode
		if errors.Is(err, flow.ErrMultipleEntryNodes) {
			reason = ReasonAmbiguousEntry
		}

		e.complete(ctx, execution, reason)

		return execution, nil
	}

	halted, err := e.run(ctx, execution, automation, graph, execCtx, entry)
	if err != nil {
		otelhelper.SetError(span, err)

		return execution, err
	}

	if !halted {
		e.complete(ctx, execution, ReasonAllNodesDone)
	}

	return execution, nil
}

// seedContext builds the runtime variable bag for a fresh execution. The
// trigger payload is replayed verbatim so templates can reference it.
func (e *Engine) seedContext(execution *models.Execution, payload map[string]any) *models.ExecutionContext {
	execCtx := &models.ExecutionContext{
		ExecutionID:    execution.ID,
		AutomationID:   execution.AutomationID,
		ContactID:      execution.ContactID,
		ConversationID: execution.ConversationID,
		TriggerPayload: payload,
		Variables:      make(map[string]any),
	}

	execCtx.SetVariable("contact_id", execution.ContactID)
	execCtx.SetVariable("conversation_id", execution.ConversationID)

	for key, value := range payload {
		execCtx.SetVariable(key, value)
	}

	if message, ok := payload["message"].(string); ok {
		execCtx.LastUserMessage = message
	}

	return execCtx
}

// run executes node and everything reachable from it. It returns halted=true
// when the execution already reached a terminal or parked state, so callers
// must not touch it further.
func (e *Engine) run(
	ctx context.Context,
	execution *models.Execution,
	automation *models.Automation,
	graph *flow.Graph,
	execCtx *models.ExecutionContext,
	node *models.FlowNode,
) (bool, error) {
	outcome, err := e.executeNode(ctx, execution, execCtx, node)
	if err != nil {
		// Durable failure record first, then rethrow so the trigger loop
		// sees the error too.
		e.fail(ctx, execution, fmt.Sprintf("node %s failed: %v", node.ID, err))

		return true, fmt.Errorf("node %s failed: %w", node.ID, err)
	}

	switch {
	case outcome.Pause != nil:
		return true, e.park(ctx, execution, execCtx, node, outcome.Pause)

	case outcome.Delay != nil:
		return true, e.scheduleDelay(ctx, execution, execCtx, node, outcome.Delay.Duration)

	case outcome.Branch != nil:
		return e.branch(ctx, execution, automation, graph, execCtx, node, outcome.Branch.Met)
	}

	return e.advance(ctx, execution, automation, graph, execCtx, node)
}

// advance follows every outgoing edge of node in definition order. An edge
// to an unknown node ends the execution with a reason naming the missing
// target; no outgoing edges means this path is done.
func (e *Engine) advance(
	ctx context.Context,
	execution *models.Execution,
	automation *models.Automation,
	graph *flow.Graph,
	execCtx *models.ExecutionContext,
	node *models.FlowNode,
) (bool, error) {
	for _, edge := range graph.OutgoingEdges(node.ID) {
		next, ok := graph.NodeByID(edge.TargetNodeID)
		if !ok {
			e.complete(ctx, execution, fmt.Sprintf("Flow edge %s targets missing node %s", edge.ID, edge.TargetNodeID))

			return true, nil
		}

		halted, err := e.run(ctx, execution, automation, graph, execCtx, next)
		if halted || err != nil {
			return halted, err
		}
	}

	return false, nil
}

// branch routes a conditions node: edge 0 is the met path, edge 1 the
// not-met path. A missing not-met edge ends the execution with a dedicated
// reason so operators can tell it from a normal completion.
func (e *Engine) branch(
	ctx context.Context,
	execution *models.Execution,
	automation *models.Automation,
	graph *flow.Graph,
	execCtx *models.ExecutionContext,
	node *models.FlowNode,
	met bool,
) (bool, error) {
	edges := graph.OutgoingEdges(node.ID)

	index := 0
	if !met {
		index = 1
	}

	if index >= len(edges) {
		if met {
			return false, nil
		}

		e.complete(ctx, execution, ReasonConditionNotMet)

		return true, nil
	}

	next, ok := graph.NodeByID(edges[index].TargetNodeID)
	if !ok {
		e.complete(ctx, execution, fmt.Sprintf("Flow edge %s targets missing node %s", edges[index].ID, edges[index].TargetNodeID))

		return true, nil
	}

	return e.run(ctx, execution, automation, graph, execCtx, next)
}

// executeNode builds the node's handler, runs it and appends running plus
// completed/failed entries to the execution log.
func (e *Engine) executeNode(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	node *models.FlowNode,
) (*protocol.Outcome, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_node",
		attribute.String(otelhelper.ExecutionIDKey, execution.ID),
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeTypeKey, node.Type),
	)
	defer span.End()

	e.appendLog(ctx, execution.ID, node, models.LogStatusRunning, node.Config, nil, "")

	handler, err := e.registry.CreateHandler(node, e.deps)
	if err != nil {
		e.appendLog(ctx, execution.ID, node, models.LogStatusFailed, node.Config, nil, err.Error())
		otelhelper.SetError(span, err)

		return nil, err
	}

	outcome, err := handler.Execute(ctx, execCtx)
	if err != nil {
		e.appendLog(ctx, execution.ID, node, models.LogStatusFailed, node.Config, nil, err.Error())
		otelhelper.SetError(span, err)

		return nil, err
	}

	status := models.LogStatusCompleted
	if outcome.Pause != nil {
		status = models.LogStatusWaitingForResponse
	}

	e.appendLog(ctx, execution.ID, node, status, node.Config, outcome.Output, "")

	e.logger.DebugContext(ctx, "Node executed",
		"execution_id", execution.ID,
		"node_id", node.ID,
		"node_type", node.Type,
		"action", outcome.Action)

	return outcome, nil
}

// park registers the pending wait and flips the execution to paused. The
// wait carries a snapshot of the variable bag so variables saved before this
// pause survive the resume. A conflicting wait on the same conversation
// fails this execution; the older wait keeps the conversation.
func (e *Engine) park(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	node *models.FlowNode,
	pause *protocol.PauseRequest,
) error {
	pendingID := pause.PendingID
	if pendingID == "" {
		pendingID = uuid.New().String()
	}

	wait := &models.PendingWait{
		ID:             pendingID,
		ConversationID: execution.ConversationID,
		ExecutionID:    execution.ID,
		AutomationID:   execution.AutomationID,
		NodeID:         node.ID,
		SaveAs:         pause.SaveAs,
		Buttons:        pause.Buttons,
		Variables:      snapshotVariables(execCtx),
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.pending.Register(ctx, wait); err != nil {
		if persistence.IsPendingConflict(err) {
			e.fail(ctx, execution, ReasonPendingConflict)

			return nil
		}

		return persistence.NewExecutionError("RegisterPending", execution.ID, err)
	}

	if err := e.persistence.ExecutionRepository().SetStatus(ctx, execution.ID, models.ExecutionStatusPaused, ""); err != nil {
		return persistence.NewExecutionError("SetStatus", execution.ID, err)
	}

	execution.Status = models.ExecutionStatusPaused

	e.logger.InfoContext(ctx, "Execution paused for user response",
		"execution_id", execution.ID,
		"conversation_id", execution.ConversationID,
		"node_id", node.ID)

	e.publish(ctx, execution.ConversationID, events.ExecutionPaused{
		BaseEvent:   events.NewBaseEvent(events.ExecutionPausedEvent, execution.AutomationID, execution.ConversationID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
		PendingID:   wait.ID,
	})

	return nil
}

// scheduleDelay persists the continuation point, pauses the execution and
// arms an in-process timer. The persisted resume_at row is authoritative:
// after a restart the sweeper's due-resumption poll fires the continuation
// even though the timer is gone. The variable bag is persisted alongside the
// resume point so it can be replayed when the gap elapses.
func (e *Engine) scheduleDelay(
	ctx context.Context,
	execution *models.Execution,
	execCtx *models.ExecutionContext,
	node *models.FlowNode,
	delay time.Duration,
) error {
	resumeAt := time.Now().UTC().Add(delay)

	repo := e.persistence.ExecutionRepository()
	if err := repo.SetResumeAt(ctx, execution.ID, resumeAt, node.ID, snapshotVariables(execCtx)); err != nil {
		return persistence.NewExecutionError("SetResumeAt", execution.ID, err)
	}

	if err := repo.SetStatus(ctx, execution.ID, models.ExecutionStatusPaused, ""); err != nil {
		return persistence.NewExecutionError("SetStatus", execution.ID, err)
	}

	execution.Status = models.ExecutionStatusPaused

	e.logger.InfoContext(ctx, "Execution delayed",
		"execution_id", execution.ID,
		"node_id", node.ID,
		"resume_at", resumeAt)

	e.publish(ctx, execution.ConversationID, events.ExecutionPaused{
		BaseEvent:   events.NewBaseEvent(events.ExecutionPausedEvent, execution.AutomationID, execution.ConversationID),
		ExecutionID: execution.ID,
		NodeID:      node.ID,
	})

	e.mu.Lock()
	e.timers[execution.ID] = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, execution.ID)
		e.mu.Unlock()

		if err := e.ResumeDue(context.Background(), execution.ID); err != nil {
			e.logger.Error("Failed to resume delayed execution",
				"execution_id", execution.ID, "error", err)
		}
	})
	e.mu.Unlock()

	return nil
}

// ResumeDue continues an execution whose delay has elapsed. Both the
// in-process timer and the sweeper's poll call it; the claim check makes the
// duplicate call a no-op.
func (e *Engine) ResumeDue(ctx context.Context, executionID string) error {
	if !e.claim(executionID) {
		return nil
	}
	defer e.release(executionID)

	repo := e.persistence.ExecutionRepository()

	execution, err := repo.GetByID(ctx, executionID)
	if err != nil {
		return persistence.NewExecutionError("GetByID", executionID, err)
	}

	if execution.Status != models.ExecutionStatusPaused || execution.ResumeAt == nil {
		return nil
	}

	resumeNodeID := execution.ResumeNodeID
	resumeVariables := execution.ResumeVariables

	if err := repo.ClearResumeAt(ctx, executionID); err != nil {
		return persistence.NewExecutionError("ClearResumeAt", executionID, err)
	}

	if err := repo.SetStatus(ctx, executionID, models.ExecutionStatusRunning, ""); err != nil {
		return persistence.NewExecutionError("SetStatus", executionID, err)
	}

	execution.Status = models.ExecutionStatusRunning

	e.logger.InfoContext(ctx, "Resuming delayed execution",
		"execution_id", executionID, "node_id", resumeNodeID)

	e.publish(ctx, execution.ConversationID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.AutomationID, execution.ConversationID),
		ExecutionID: executionID,
		NodeID:      resumeNodeID,
	})

	return e.continueAfter(ctx, execution, resumeNodeID, &resumeState{
		variables: resumeVariables,
	})
}

// ResumeFromReply continues the execution parked on wait with the contact's
// reply. The reply is resolved against the offered buttons, stored under the
// node's save_as variable and becomes the last user message for downstream
// condition nodes.
func (e *Engine) ResumeFromReply(ctx context.Context, wait *models.PendingWait, msg models.InboundMessage) error {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.resume_from_reply",
		attribute.String(otelhelper.ExecutionIDKey, wait.ExecutionID),
		attribute.String(otelhelper.ConversationIDKey, wait.ConversationID),
	)
	defer span.End()

	repo := e.persistence.ExecutionRepository()

	execution, err := repo.GetByID(ctx, wait.ExecutionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return persistence.NewExecutionError("GetByID", wait.ExecutionID, err)
	}

	if execution.Status.Terminal() {
		// The wait outlived its execution (cancelled or swept); nothing to
		// resume.
		return nil
	}

	button, replyText := ResolveReply(wait.Buttons, msg)

	if err := repo.SetStatus(ctx, execution.ID, models.ExecutionStatusRunning, ""); err != nil {
		otelhelper.SetError(span, err)

		return persistence.NewExecutionError("SetStatus", execution.ID, err)
	}

	execution.Status = models.ExecutionStatusRunning

	// Replay the bag saved at pause time first; the fresh reply wins on
	// collision.
	variables := map[string]any{}
	maps.Copy(variables, wait.Variables)

	if wait.SaveAs != "" {
		variables[wait.SaveAs] = replyText
		if button != nil {
			variables[wait.SaveAs+"_button_id"] = button.ID
		}
	}

	// The waiting node's log entry moves from waiting_for_response to
	// completed now that the reply arrived.
	output := map[string]any{"reply": replyText}
	if button != nil {
		output["button_id"] = button.ID
	}

	e.appendLog(ctx, execution.ID,
		&models.FlowNode{ID: wait.NodeID, Type: models.NodeTypeUserReply},
		models.LogStatusCompleted, nil, output, "")

	e.logger.InfoContext(ctx, "Execution resumed by user response",
		"execution_id", execution.ID,
		"conversation_id", execution.ConversationID,
		"node_id", wait.NodeID)

	e.publish(ctx, execution.ConversationID, events.ExecutionResumed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionResumedEvent, execution.AutomationID, execution.ConversationID),
		ExecutionID: execution.ID,
		NodeID:      wait.NodeID,
		Reply:       replyText,
	})

	return e.continueAfter(ctx, execution, wait.NodeID, &resumeState{
		variables:       variables,
		lastUserMessage: replyText,
	})
}

type resumeState struct {
	variables       map[string]any
	lastUserMessage string
}

// snapshotVariables copies the context's variable bag for durable storage.
// The copy is taken at pause time so later mutations cannot leak into it.
func snapshotVariables(execCtx *models.ExecutionContext) map[string]any {
	if len(execCtx.Variables) == 0 {
		return nil
	}

	snapshot := make(map[string]any, len(execCtx.Variables))
	maps.Copy(snapshot, execCtx.Variables)

	return snapshot
}

// continueAfter reloads the automation and walks the successors of nodeID.
func (e *Engine) continueAfter(ctx context.Context, execution *models.Execution, nodeID string, state *resumeState) error {
	automation, err := e.persistence.AutomationRepository().GetWithFlow(ctx, execution.AutomationID)
	if err != nil {
		e.fail(ctx, execution, fmt.Sprintf("automation %s unavailable: %v", execution.AutomationID, err))

		return nil
	}

	graph := flow.NewGraph(automation.Nodes, automation.Edges)
	execCtx := e.seedContext(execution, execution.TriggerPayload)

	if state != nil {
		for key, value := range state.variables {
			execCtx.SetVariable(key, value)
		}

		if state.lastUserMessage != "" {
			execCtx.LastUserMessage = state.lastUserMessage
		}
	}

	// The node we paused on must still exist in the reloaded graph; the
	// automation was edited out from under a paused run otherwise.
	node, ok := graph.NodeByID(nodeID)
	if !ok {
		e.fail(ctx, execution, fmt.Sprintf("resume node %s no longer exists in automation %s", nodeID, execution.AutomationID))

		return nil
	}

	halted, err := e.advance(ctx, execution, automation, graph, execCtx, node)
	if err != nil {
		return err
	}

	if !halted {
		e.complete(ctx, execution, ReasonAllNodesDone)
	}

	return nil
}

// Cancel aborts the pending wait for a conversation and fails its execution.
func (e *Engine) Cancel(ctx context.Context, conversationID string) error {
	wait, err := e.pending.Take(ctx, conversationID)
	if err != nil {
		return err
	}

	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, wait.ExecutionID)
	if err != nil {
		return persistence.NewExecutionError("GetByID", wait.ExecutionID, err)
	}

	if execution.Status.Terminal() {
		return nil
	}

	e.fail(ctx, execution, ReasonCancelled)

	return nil
}

// Expire fails the execution behind an expired wait. The wait must already
// have been taken from the registry.
func (e *Engine) Expire(ctx context.Context, wait *models.PendingWait) error {
	execution, err := e.persistence.ExecutionRepository().GetByID(ctx, wait.ExecutionID)
	if err != nil {
		return persistence.NewExecutionError("GetByID", wait.ExecutionID, err)
	}

	if execution.Status.Terminal() {
		return nil
	}

	e.fail(ctx, execution, ReasonReplyTimeout)

	return nil
}

// Close stops every armed delay timer. Persisted resume_at rows survive and
// fire on the next start.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
	}
}

func (e *Engine) complete(ctx context.Context, execution *models.Execution, reason string) {
	if err := e.persistence.ExecutionRepository().SetStatus(ctx, execution.ID, models.ExecutionStatusCompleted, reason); err != nil {
		e.logger.ErrorContext(ctx, "Failed to mark execution completed",
			"execution_id", execution.ID, "error", err)
	}

	execution.Status = models.ExecutionStatusCompleted
	execution.Reason = reason

	e.logger.InfoContext(ctx, "Execution completed",
		"execution_id", execution.ID, "reason", reason)

	e.publish(ctx, execution.ConversationID, events.ExecutionCompleted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionCompletedEvent, execution.AutomationID, execution.ConversationID),
		ExecutionID: execution.ID,
		Reason:      reason,
	})
}

func (e *Engine) fail(ctx context.Context, execution *models.Execution, reason string) {
	if err := e.persistence.ExecutionRepository().SetStatus(ctx, execution.ID, models.ExecutionStatusFailed, reason); err != nil {
		e.logger.ErrorContext(ctx, "Failed to mark execution failed",
			"execution_id", execution.ID, "error", err)
	}

	execution.Status = models.ExecutionStatusFailed
	execution.Reason = reason

	e.logger.WarnContext(ctx, "Execution failed",
		"execution_id", execution.ID, "reason", reason)

	e.publish(ctx, execution.ConversationID, events.ExecutionFailed{
		BaseEvent:   events.NewBaseEvent(events.ExecutionFailedEvent, execution.AutomationID, execution.ConversationID),
		ExecutionID: execution.ID,
		Reason:      reason,
	})
}

func (e *Engine) appendLog(
	ctx context.Context,
	executionID string,
	node *models.FlowNode,
	status models.LogStatus,
	input, output map[string]any,
	errMsg string,
) {
	entry := &models.ExecutionLogEntry{
		ID:          uuid.New().String(),
		ExecutionID: executionID,
		NodeID:      node.ID,
		NodeType:    node.Type,
		Status:      status,
		Input:       input,
		Output:      output,
		Error:       errMsg,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.persistence.ExecutionRepository().AppendLog(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "Failed to append execution log",
			"execution_id", executionID, "node_id", node.ID, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.bus == nil {
		return
	}

	if err := e.bus.Publish(ctx, key, event); err != nil {
		e.logger.WarnContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

func (e *Engine) claim(executionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight[executionID] {
		return false
	}

	e.inFlight[executionID] = true

	return true
}

func (e *Engine) release(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.inFlight, executionID)
}

// ResolveReply maps an inbound message onto the button set offered by the
// paused node. Structured button clicks match by id, then title; free text
// matches the exact label, then a 1-based numeric index, then a substring in
// either direction. An unmatched reply passes through as raw text.
func ResolveReply(buttons []models.Button, msg models.InboundMessage) (*models.Button, string) {
	if msg.ButtonClick != nil {
		for i := range buttons {
			if buttons[i].ID == msg.ButtonClick.ID {
				return &buttons[i], buttons[i].Title
			}
		}

		for i := range buttons {
			if strings.EqualFold(buttons[i].Title, msg.ButtonClick.Title) {
				return &buttons[i], buttons[i].Title
			}
		}

		return nil, msg.ButtonClick.Title
	}

	text := strings.TrimSpace(msg.Text)
	if len(buttons) == 0 || text == "" {
		return nil, text
	}

	for i := range buttons {
		if strings.EqualFold(buttons[i].Title, text) {
			return &buttons[i], buttons[i].Title
		}
	}

	if index, err := strconv.Atoi(text); err == nil && index >= 1 && index <= len(buttons) {
		return &buttons[index-1], buttons[index-1].Title
	}

	lowered := strings.ToLower(text)
	for i := range buttons {
		title := strings.ToLower(buttons[i].Title)
		if strings.Contains(lowered, title) || strings.Contains(title, lowered) {
			return &buttons[i], buttons[i].Title
		}
	}

	return nil, text
}
