// Package mscworker implements one worker per configured MSC agent. A
// worker forwards sub-commands to its agent over UDP, acknowledges them
// optimistically the moment they're sent, and classifies whatever the
// agent sends back: replies carrying a request_id go to the dispatcher,
// everything else is treated as an event for the broadcaster.
package mscworker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/gatekit/health"
	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
	"github.com/c360/gatekit/pkg/udpsend"
	"github.com/c360/gatekit/queue"
)

const drainTick = 10 * time.Millisecond

// Worker handles traffic for one MSC agent.
type Worker struct {
	id         string
	remoteAddr *net.UDPAddr

	inbound  *queue.Queue
	subCmdCh chan message.SubCommand

	replyCh chan<- message.AgentReply
	eventCh chan<- message.Event

	sender *udpsend.Sender
	logger *slog.Logger

	metrics *metric.Metrics
	monitor *health.Monitor
}

// New constructs a worker for one MSC agent. replyCh and eventCh are the
// dispatcher's and broadcaster's inbound channels respectively.
func New(id, remoteAddress string, queueSize int, replyCh chan<- message.AgentReply, eventCh chan<- message.Event, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) (*Worker, error) {
	remoteAddr, err := net.ResolveUDPAddr("udp", remoteAddress)
	if err != nil {
		return nil, err
	}
	inbound, err := queue.New(queueSize, func(pkt message.Packet) {
		metrics.RecordPacketDropped(pkt.Origin)
	})
	if err != nil {
		return nil, err
	}
	sender, err := udpsend.New()
	if err != nil {
		return nil, err
	}

	return &Worker{
		id:         id,
		remoteAddr: remoteAddr,
		inbound:    inbound,
		subCmdCh:   make(chan message.SubCommand, queueSize),
		replyCh:    replyCh,
		eventCh:    eventCh,
		sender:     sender,
		logger:     logger.With("agent_id", id),
		metrics:    metrics,
		monitor:    monitor,
	}, nil
}

// SubCommands returns the channel the dispatcher sends sub-commands on.
func (w *Worker) SubCommands() chan<- message.SubCommand {
	return w.subCmdCh
}

// Enqueue implements reactor.Target: it places an inbound packet from the
// agent's socket onto this worker's per-agent queue.
func (w *Worker) Enqueue(pkt message.Packet) {
	w.inbound.Push(pkt)
}

// Run processes sub-commands and drains inbound packets until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(drainTick)
	defer ticker.Stop()
	defer func() { _ = w.sender.Close() }()

	w.monitor.UpdateHealthy(workerComponent(w.id), "running")

	for {
		select {
		case <-ctx.Done():
			return nil
		case sub := <-w.subCmdCh:
			w.handleSubCommand(sub)
		case <-ticker.C:
			w.drainInbound()
		}
	}
}

func (w *Worker) handleSubCommand(sub message.SubCommand) {
	body, err := json.Marshal(sub.Command)
	if err != nil {
		w.logger.Error("mscworker: sub-command marshal failed", "request_id", sub.RequestID, "error", err)
		return
	}

	correlation := uuid.NewString()
	if err := w.sender.Send(w.remoteAddr, body); err != nil {
		w.metrics.RecordSendError(workerComponent(w.id))
		w.logger.Error("mscworker: forward failed", "request_id", sub.RequestID, "correlation_id", correlation, "error", err)
	} else {
		w.logger.Debug("mscworker: forwarded sub-command", "request_id", sub.RequestID, "correlation_id", correlation)
	}

	// Optimistic acknowledgement: the worker reports success to the
	// dispatcher as soon as the sub-command is sent, independent of
	// whatever the agent eventually replies with.
	w.replyCh <- message.AgentReply{
		Response:  map[string]any{"result": "success", "message": "Command processed"},
		RequestID: sub.RequestID,
		AgentID:   w.id,
		Success:   true,
	}
}

func (w *Worker) drainInbound() {
	for {
		pkt, ok := w.inbound.Pop()
		if !ok {
			return
		}
		w.handlePacket(pkt)
	}
}

func (w *Worker) handlePacket(pkt message.Packet) {
	var data map[string]any
	if err := json.Unmarshal(pkt.Payload, &data); err != nil {
		w.logger.Warn("mscworker: could not parse inbound packet", "error", err)
		return
	}

	if requestID, ok := data["request_id"].(string); ok && requestID != "" {
		w.replyCh <- message.AgentReply{Response: data, RequestID: requestID, AgentID: w.id, Success: true}
		return
	}
	w.eventCh <- message.Event{Data: data}
}

func workerComponent(id string) string {
	return fmt.Sprintf("mscworker.%s", id)
}
