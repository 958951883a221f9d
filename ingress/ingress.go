// Package ingress drains the command queue, validates each packet as a
// JSON object carrying a string "command" field, and forwards validated
// commands to the dispatcher. Malformed packets get a validation-failure
// reply sent straight back to the sender; well-formed ones get a
// provisional acknowledgement sent to the configured command-reply
// address (not necessarily the sender) before being handed off.
package ingress

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
	"github.com/c360/gatekit/pkg/udpsend"
	"github.com/c360/gatekit/queue"
)

const drainTick = 10 * time.Millisecond

var provisionalAck = []byte(`{"status":"accepted","message":"Command received for processing"}`)

// Ingress validates command packets and forwards them to the dispatcher.
type Ingress struct {
	queue         *queue.Queue
	remoteCmdAddr *net.UDPAddr
	dispatchCh    chan<- message.ValidatedCommand
	sender        *udpsend.Sender
	counter       atomic.Uint64
	testMode      bool

	logger  *slog.Logger
	metrics *metric.Metrics
}

// New constructs an Ingress. remoteCmdAddress is the address provisional
// acks are sent to (config's cmd.remote_address).
func New(q *queue.Queue, remoteCmdAddress string, dispatchCh chan<- message.ValidatedCommand, testMode bool, metrics *metric.Metrics, logger *slog.Logger) (*Ingress, error) {
	remoteAddr, err := net.ResolveUDPAddr("udp", remoteCmdAddress)
	if err != nil {
		return nil, err
	}
	sender, err := udpsend.New()
	if err != nil {
		return nil, err
	}
	return &Ingress{
		queue:         q,
		remoteCmdAddr: remoteAddr,
		dispatchCh:    dispatchCh,
		sender:        sender,
		testMode:      testMode,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Run drains the command queue on a fixed tick until ctx is cancelled.
func (i *Ingress) Run(ctx context.Context) error {
	ticker := time.NewTicker(drainTick)
	defer ticker.Stop()
	defer func() { _ = i.sender.Close() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			i.tick()
		}
	}
}

func (i *Ingress) tick() {
	pkt, ok := i.queue.Pop()
	if !ok {
		return
	}
	i.metrics.SetQueueDepth("cmd", i.queue.Len())

	var cmd map[string]any
	if err := json.Unmarshal(pkt.Payload, &cmd); err != nil {
		i.reject(pkt.Sender, "invalid JSON: "+err.Error())
		return
	}

	cmdField, ok := cmd["command"]
	if !ok {
		i.reject(pkt.Sender, "missing 'command' field")
		return
	}
	if _, ok := cmdField.(string); !ok {
		i.reject(pkt.Sender, "'command' field must be a string")
		return
	}

	if err := i.sender.Send(i.remoteCmdAddr, provisionalAck); err != nil {
		i.metrics.RecordSendError("ingress")
		i.logger.Error("ingress: provisional ack send failed", "error", err)
	}

	requestID := fmt.Sprintf("req_%d", i.counter.Add(1))
	if i.testMode {
		i.logger.Debug("ingress: parsed command", "request_id", requestID, "command", cmd)
	}

	i.dispatchCh <- message.ValidatedCommand{Command: cmd, Sender: pkt.Sender, RequestID: requestID}
}

func (i *Ingress) reject(sender *net.UDPAddr, reason string) {
	body, err := json.Marshal(map[string]any{"error": "validation_failed", "message": reason})
	if err != nil {
		i.logger.Error("ingress: could not marshal rejection", "error", err)
		return
	}
	if err := i.sender.Send(sender, body); err != nil {
		i.metrics.RecordSendError("ingress")
		i.logger.Error("ingress: validation-failure reply send failed", "error", err)
	}
	i.logger.Warn("ingress: validation failed", "reason", reason)
}
