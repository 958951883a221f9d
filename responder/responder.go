// Package responder sends the dispatcher's final responses back to
// whoever originally sent the command.
package responder

import (
	"context"

	"log/slog"

	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
	"github.com/c360/gatekit/pkg/udpsend"
)

// Responder delivers final responses over UDP.
type Responder struct {
	finalCh chan message.FinalResponse
	sender  *udpsend.Sender

	logger  *slog.Logger
	metrics *metric.Metrics
}

// New constructs a Responder.
func New(metrics *metric.Metrics, logger *slog.Logger) (*Responder, error) {
	sender, err := udpsend.New()
	if err != nil {
		return nil, err
	}
	return &Responder{
		finalCh: make(chan message.FinalResponse, 256),
		sender:  sender,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// FinalResponses returns the channel the dispatcher sends final
// responses on.
func (r *Responder) FinalResponses() chan<- message.FinalResponse {
	return r.finalCh
}

// Run delivers final responses until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	defer func() { _ = r.sender.Close() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fr := <-r.finalCh:
			if err := r.sender.Send(fr.Destination, fr.ResponseJSON); err != nil {
				r.metrics.RecordSendError("responder")
				r.logger.Error("responder: send failed", "error", err)
			}
		}
	}
}
