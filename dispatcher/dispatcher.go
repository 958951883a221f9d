// Package dispatcher resolves a validated command's target MSC agent(s),
// fans out a sub-command to each, collects their replies into a single
// aggregated response, and times out agents that never answer.
//
// It owns one pending-request table that only it touches, so it needs no
// locking: every mutation happens on the single goroutine running Run.
package dispatcher

import (
	"context"
	"encoding/json"
	"net"
	"time"

	"log/slog"

	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
)

const timeoutSweepTick = 10 * time.Millisecond

const (
	outcomeCompleted  = "completed"
	outcomeTimeout    = "timeout"
	outcomeInvalidTgt = "invalid_target"
	outcomeNoTargets  = "no_targets"
)

type pendingRequest struct {
	waitingFor []string
	responses  []map[string]any
	sender     *net.UDPAddr
	startedAt  time.Time
	timeout    time.Duration
}

// Dispatcher fans commands out to MSC workers and aggregates their
// replies into final responses.
type Dispatcher struct {
	mscIDs           []string
	subCmdChs        map[string]chan<- message.SubCommand
	defaultTimeoutMs int64

	validatedCh chan message.ValidatedCommand
	replyCh     chan message.AgentReply
	finalCh     chan<- message.FinalResponse

	pending map[string]*pendingRequest

	logger  *slog.Logger
	metrics *metric.Metrics
}

// New constructs a Dispatcher with its inbound channels ready. Targets
// (the MSC agent ids and their workers' sub-command channels) are set
// separately via SetTargets, since workers are typically built after the
// dispatcher so they can receive its AgentReplies channel.
func New(defaultTimeoutMs int64, finalCh chan<- message.FinalResponse, metrics *metric.Metrics, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		defaultTimeoutMs: defaultTimeoutMs,
		validatedCh:      make(chan message.ValidatedCommand, 256),
		replyCh:          make(chan message.AgentReply, 256),
		finalCh:          finalCh,
		pending:          make(map[string]*pendingRequest),
		logger:           logger,
		metrics:          metrics,
	}
}

// SetTargets records every configured MSC agent id, in declaration order
// (used to resolve target "all"), and the channel each one's worker
// receives sub-commands on. It must be called once, before Run.
func (d *Dispatcher) SetTargets(mscIDs []string, subCmdChs map[string]chan<- message.SubCommand) {
	d.mscIDs = mscIDs
	d.subCmdChs = subCmdChs
}

// ValidatedCommands returns the channel ingress sends validated commands on.
func (d *Dispatcher) ValidatedCommands() chan<- message.ValidatedCommand {
	return d.validatedCh
}

// AgentReplies returns the channel MSC workers send replies on.
func (d *Dispatcher) AgentReplies() chan<- message.AgentReply {
	return d.replyCh
}

// Run processes commands, replies, and timeout sweeps until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(timeoutSweepTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-d.validatedCh:
			d.handleValidatedCommand(cmd)
		case reply := <-d.replyCh:
			d.handleAgentReply(reply)
		case <-ticker.C:
			d.sweepTimeouts()
		}
	}
}

func (d *Dispatcher) handleValidatedCommand(cmd message.ValidatedCommand) {
	target, _ := cmd.Command["target"].(string)

	var targets []string
	switch {
	case target == "all":
		targets = append(targets, d.mscIDs...)
	case target != "" && d.subCmdChs[target] != nil:
		targets = []string{target}
	default:
		d.emitFinal(cmd.Sender, map[string]any{
			"error":      "invalid_target",
			"request_id": cmd.RequestID,
			"message":    "Target not found",
		}, outcomeInvalidTgt)
		return
	}

	if len(targets) == 0 {
		d.emitFinal(cmd.Sender, map[string]any{
			"error":      "no_targets",
			"request_id": cmd.RequestID,
			"message":    "No valid targets found",
		}, outcomeNoTargets)
		return
	}

	pending := &pendingRequest{
		waitingFor: targets,
		sender:     cmd.Sender,
		startedAt:  time.Now(),
		timeout:    time.Duration(d.defaultTimeoutMs) * time.Millisecond,
	}
	d.pending[cmd.RequestID] = pending
	d.metrics.RecordDispatched()

	for _, id := range targets {
		d.subCmdChs[id] <- message.SubCommand{Command: cmd.Command, RequestID: cmd.RequestID, TargetID: id}
	}
}

func (d *Dispatcher) handleAgentReply(reply message.AgentReply) {
	pending, ok := d.pending[reply.RequestID]
	if !ok {
		// Unknown request id: either it never existed or its timeout
		// sweep already closed it out. Drop silently.
		return
	}

	idx := indexOf(pending.waitingFor, reply.AgentID)
	if idx == -1 {
		// Already answered for this agent (the optimistic ack and the
		// agent's real reply both arrived) or not a target at all.
		return
	}

	enriched := make(map[string]any, len(reply.Response)+2)
	for k, v := range reply.Response {
		enriched[k] = v
	}
	enriched["agent_id"] = reply.AgentID
	enriched["success"] = reply.Success
	pending.responses = append(pending.responses, enriched)
	pending.waitingFor = append(pending.waitingFor[:idx], pending.waitingFor[idx+1:]...)

	d.metrics.RecordAgentReply(reply.AgentID)

	if len(pending.waitingFor) == 0 {
		delete(d.pending, reply.RequestID)
		d.finish(reply.RequestID, pending, outcomeCompleted)
	}
}

func (d *Dispatcher) sweepTimeouts() {
	for requestID, pending := range d.pending {
		if time.Since(pending.startedAt) < pending.timeout {
			continue
		}
		for _, agentID := range pending.waitingFor {
			pending.responses = append(pending.responses, map[string]any{
				"error":    "timeout",
				"agent_id": agentID,
				"success":  false,
			})
		}
		delete(d.pending, requestID)
		d.finish(requestID, pending, outcomeTimeout)
	}
}

func (d *Dispatcher) finish(requestID string, pending *pendingRequest, outcome string) {
	body := map[string]any{
		"status":     "completed",
		"request_id": requestID,
		"responses":  pending.responses,
	}
	data, err := json.Marshal(body)
	if err != nil {
		d.logger.Error("dispatcher: could not marshal final response", "request_id", requestID, "error", err)
		return
	}
	d.metrics.RecordCompleted(outcome)
	d.metrics.ObserveDispatchDuration(time.Since(pending.startedAt))
	d.finalCh <- message.FinalResponse{ResponseJSON: data, Destination: pending.sender}
}

func (d *Dispatcher) emitFinal(sender *net.UDPAddr, body map[string]any, outcome string) {
	data, err := json.Marshal(body)
	if err != nil {
		d.logger.Error("dispatcher: could not marshal error response", "outcome", outcome, "error", err)
		return
	}
	d.metrics.RecordCompleted(outcome)
	d.finalCh <- message.FinalResponse{ResponseJSON: data, Destination: sender}
}

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}
