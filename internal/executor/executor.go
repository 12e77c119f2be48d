// Package executor implements a2asrv.AgentExecutor (spec.md §4.6): the
// component that drives one A2A invocation end to end, translating
// between the upstream Cognigy-style backend and A2A task/status/
// artifact events.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/sngueneko/cognigy-a2a-gateway/internal/gateway"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/normalize"
	"github.com/sngueneko/cognigy-a2a-gateway/internal/taskreg"
)

// userIDPrefix namespaces upstream user ids so they never collide
// across gateway deployments sharing one backend tenant.
const userIDPrefix = "a2a-gateway"

// Sender is the minimal surface both upstream strategies expose to
// the executor; internal/upstream's ReqAdapter and StreamAdapter each
// satisfy it via a thin wrapper (reqSender/streamSender in bind.go).
type Sender interface {
	Kind() gateway.Transport
	Send(ctx context.Context, userID, sessionID, text string, data map[string]any, onOutput func(gateway.RawOutput, int)) ([]gateway.RawOutput, error)
}

// Executor implements a2asrv.AgentExecutor by delegating a single
// agent's upstream traffic to its Sender.
type Executor struct {
	sender   Sender
	sessions *taskreg.Registry
	logger   *slog.Logger
}

func New(sender Sender, sessions *taskreg.Registry, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{sender: sender, sessions: sessions, logger: logger}
}

// Execute runs spec.md §4.6's algorithm: register a cancellation
// signal, branch on transport, stream per-output events for STREAM
// agents, and publish a single terminal event closing the task out.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	taskID := string(reqCtx.TaskID)
	userText := firstText(reqCtx.Message)
	data := cognigyData(reqCtx)

	signal := taskreg.NewSignal()
	e.sessions.Register(taskID, signal)
	defer e.sessions.Deregister(taskID)

	isStream := e.sender.Kind() == gateway.TransportSTREAM

	if isStream {
		opening := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
		if err := queue.Write(ctx, opening); err != nil {
			return fmt.Errorf("write opening status event: %w", err)
		}
	}

	var onOutput func(gateway.RawOutput, int)
	if isStream {
		onOutput = func(raw gateway.RawOutput, index int) {
			if signal.Canceled() {
				return
			}
			event := e.buildStreamEvent(reqCtx, raw)
			if event == nil {
				return
			}
			if err := queue.Write(ctx, event); err != nil {
				e.logger.Error("executor: failed writing stream output event", "task_id", taskID, "index", index, "error", err)
			}
		}
	}

	sessionID := reqCtx.ContextID
	userID := userIDPrefix + "-" + sessionID

	outs, err := e.sender.Send(ctx, userID, sessionID, userText, data, onOutput)
	if err != nil {
		e.logger.Error("executor: adapter send failed", "task_id", taskID, "error", err)
		return e.publishFailure(ctx, reqCtx, queue, isStream)
	}

	if signal.Canceled() {
		canceled := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
		canceled.Final = true
		return queue.Write(ctx, canceled)
	}

	if isStream {
		completed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)
		completed.Final = true
		return queue.Write(ctx, completed)
	}

	parts := normalize.Flatten(outs)
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, parts...)
	completed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, msg)
	completed.Final = true
	return queue.Write(ctx, completed)
}

// Cancel asks the Task Session Registry to fire the matching signal.
// If none was in flight, the terminal canceled event is synthesized
// here instead.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if e.sessions.Cancel(string(reqCtx.TaskID)) {
		return nil
	}
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

func (e *Executor) publishFailure(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue, isStream bool) error {
	const genericErrorText = "An error occurred while processing your request."
	if isStream {
		failed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, nil)
		failed.Final = true
		return queue.Write(ctx, failed)
	}
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: genericErrorText})
	return queue.Write(ctx, msg)
}

// buildStreamEvent classifies one raw output and returns the matching
// A2A event: a status-update carrying a message for plain/structured
// content, or an artifact-update for media.
func (e *Executor) buildStreamEvent(reqCtx *a2asrv.RequestContext, raw gateway.RawOutput) a2a.Event {
	out := normalize.Classify(raw)

	switch out.Kind {
	case normalize.KindArtifact:
		event := a2a.NewArtifactEvent(reqCtx, out.Parts...)
		event.Artifact.Name = out.Name
		event.LastChunk = true
		return event

	default:
		msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, out.Parts...)
		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, msg)
		event.Final = false
		return event
	}
}

func firstText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			return tp.Text
		}
	}
	return ""
}

// cognigyData reads task.metadata.cognigyData off the stored task, if
// the A2A client attached one (spec.md §4.6 step 1).
func cognigyData(reqCtx *a2asrv.RequestContext) map[string]any {
	return cognigyDataFrom(reqCtx.StoredTask)
}

func cognigyDataFrom(task *a2a.Task) map[string]any {
	if task == nil || task.Metadata == nil {
		return nil
	}
	data, _ := task.Metadata["cognigyData"].(map[string]any)
	return data
}
