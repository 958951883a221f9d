// Package broadcaster forwards MSC-originated events (packets with no
// request_id) to the configured command-reply address as JSON.
package broadcaster

import (
	"context"
	"encoding/json"
	"net"

	"log/slog"

	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
	"github.com/c360/gatekit/pkg/udpsend"
)

// Broadcaster relays events to a fixed destination address.
type Broadcaster struct {
	eventCh     chan message.Event
	destination *net.UDPAddr
	sender      *udpsend.Sender

	logger  *slog.Logger
	metrics *metric.Metrics
}

// New constructs a Broadcaster that sends to destinationAddress
// (config's cmd.remote_address).
func New(destinationAddress string, metrics *metric.Metrics, logger *slog.Logger) (*Broadcaster, error) {
	destination, err := net.ResolveUDPAddr("udp", destinationAddress)
	if err != nil {
		return nil, err
	}
	sender, err := udpsend.New()
	if err != nil {
		return nil, err
	}
	return &Broadcaster{
		eventCh:     make(chan message.Event, 256),
		destination: destination,
		sender:      sender,
		logger:      logger,
		metrics:     metrics,
	}, nil
}

// Events returns the channel MSC workers send events on.
func (b *Broadcaster) Events() chan<- message.Event {
	return b.eventCh
}

// Run relays events until ctx is cancelled.
func (b *Broadcaster) Run(ctx context.Context) error {
	defer func() { _ = b.sender.Close() }()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-b.eventCh:
			b.relay(ev)
		}
	}
}

func (b *Broadcaster) relay(ev message.Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		b.logger.Error("broadcaster: could not marshal event", "error", err)
		return
	}
	if err := b.sender.Send(b.destination, data); err != nil {
		b.metrics.RecordSendError("broadcaster")
		b.logger.Error("broadcaster: send failed", "error", err)
		return
	}
	b.metrics.RecordEventBroadcast()
}
