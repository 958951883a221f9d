// Package reactor owns every UDP socket the gateway listens on: the
// command port and one port per configured MSC agent. It binds each
// socket with retry, then runs a single loop that polls each socket in
// turn for a short readiness window, tags every datagram it reads with
// the origin socket, and routes it to the command queue or directly to
// the matching MSC worker's inbound queue.
//
// A single goroutine sweeping all sockets stands in for the readiness
// multiplexer (epoll, in the system this gateway replaces) that Go's net
// package does not expose for datagram sockets; per-socket read deadlines
// keep the sweep non-blocking.
package reactor

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"log/slog"

	"github.com/c360/gatekit/config"
	"github.com/c360/gatekit/errors"
	"github.com/c360/gatekit/health"
	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
	"github.com/c360/gatekit/pkg/retry"
	"github.com/c360/gatekit/pkg/timestamp"
	"github.com/c360/gatekit/queue"
)

const (
	originCmd          = "cmd"
	mscOriginPrefix    = "msc_"
	maxDatagramSize    = 4096
	socketReadBufBytes = 2 * 1024 * 1024
	readinessWindow    = 100 * time.Millisecond
)

// Target receives packets routed to one MSC worker's inbound queue.
type Target interface {
	Enqueue(pkt message.Packet)
}

type boundSocket struct {
	origin string
	addr   string
	conn   *net.UDPConn
}

// Reactor binds and polls every configured UDP socket.
type Reactor struct {
	sockets     []*boundSocket
	cmdQueue    *queue.Queue
	mscTargets  map[string]Target
	logger      *slog.Logger
	metrics     *metric.Metrics
	monitor     *health.Monitor
	retryConfig retry.Config
	ready       chan struct{}
}

// New builds a Reactor for the command port and every configured MSC
// agent. mscTargets maps agent id to the worker that should receive its
// packets.
func New(cfg *config.Config, cmdQueue *queue.Queue, mscTargets map[string]Target, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) *Reactor {
	sockets := make([]*boundSocket, 0, 1+len(cfg.MSCAgents))
	sockets = append(sockets, &boundSocket{origin: originCmd, addr: cfg.Cmd.LocalAddress})
	for _, agent := range cfg.MSCAgents {
		sockets = append(sockets, &boundSocket{origin: mscOriginPrefix + agent.ID, addr: agent.LocalAddress})
	}

	return &Reactor{
		sockets:     sockets,
		cmdQueue:    cmdQueue,
		mscTargets:  mscTargets,
		logger:      logger,
		metrics:     metrics,
		monitor:     monitor,
		retryConfig: retry.DefaultConfig(),
		ready:       make(chan struct{}),
	}
}

// Ready is closed once every socket is bound and the poll loop is about
// to start.
func (r *Reactor) Ready() <-chan struct{} {
	return r.ready
}

// BoundAddr returns the actual local address a socket bound to (useful
// when the configured address used port 0), or false if origin is unknown
// or not yet bound.
func (r *Reactor) BoundAddr(origin string) (*net.UDPAddr, bool) {
	for _, sock := range r.sockets {
		if sock.origin == origin && sock.conn != nil {
			return sock.conn.LocalAddr().(*net.UDPAddr), true
		}
	}
	return nil, false
}

// Run binds every socket, then polls them until ctx is cancelled.
func (r *Reactor) Run(ctx context.Context) error {
	if err := r.bindAll(ctx); err != nil {
		return err
	}
	defer r.closeAll()
	close(r.ready)

	r.monitor.UpdateHealthy("reactor", fmt.Sprintf("listening on %d socket(s)", len(r.sockets)))

	buf := make([]byte, maxDatagramSize)
	perSocketWindow := readinessWindow
	if n := len(r.sockets); n > 1 {
		perSocketWindow = readinessWindow / time.Duration(n)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		for _, sock := range r.sockets {
			select {
			case <-ctx.Done():
				return nil
			default:
			}

			n, addr, err := r.readOne(sock, buf, perSocketWindow)
			if err != nil {
				continue
			}
			if n == 0 && addr == nil {
				continue
			}
			r.deliver(sock.origin, buf[:n], addr)
		}
	}
}

func (r *Reactor) readOne(sock *boundSocket, buf []byte, window time.Duration) (int, *net.UDPAddr, error) {
	if err := sock.conn.SetReadDeadline(time.Now().Add(window)); err != nil {
		return 0, nil, err
	}
	n, addr, err := sock.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil, nil
		}
		r.logger.Error("reactor: read error", "origin", sock.origin, "error", err)
		return 0, nil, err
	}
	return n, addr, nil
}

func (r *Reactor) deliver(origin string, payload []byte, addr *net.UDPAddr) {
	data := make([]byte, len(payload))
	copy(data, payload)

	pkt := message.Packet{
		Payload:   data,
		Origin:    origin,
		Sender:    addr,
		Timestamp: timestamp.Now(),
	}
	r.metrics.RecordPacketReceived(origin)

	if origin == originCmd {
		r.cmdQueue.Push(pkt)
		r.metrics.SetQueueDepth("cmd", r.cmdQueue.Len())
		return
	}

	agentID := strings.TrimPrefix(origin, mscOriginPrefix)
	target, ok := r.mscTargets[agentID]
	if !ok {
		r.logger.Error("reactor: no MSC worker bound for agent, packet dropped", "agent_id", agentID)
		r.metrics.RecordPacketDropped(origin)
		return
	}
	target.Enqueue(pkt)
}

func (r *Reactor) bindAll(ctx context.Context) error {
	for _, sock := range r.sockets {
		sock := sock
		bind := func() error {
			addr, err := net.ResolveUDPAddr("udp", sock.addr)
			if err != nil {
				return retry.NonRetryable(fmt.Errorf("resolve %s: %w", sock.addr, err))
			}
			conn, err := net.ListenUDP("udp", addr)
			if err != nil {
				return err
			}
			if err := conn.SetReadBuffer(socketReadBufBytes); err != nil {
				r.logger.Warn("reactor: could not size socket read buffer", "origin", sock.origin, "error", err)
			}
			sock.conn = conn
			return nil
		}

		if err := retry.Do(ctx, r.retryConfig, bind); err != nil {
			r.closeAll()
			r.monitor.UpdateUnhealthy("reactor", err.Error())
			return errors.WrapFatal(err, "Reactor", "bindAll", fmt.Sprintf("bind %s (%s)", sock.addr, sock.origin))
		}
		r.logger.Info("reactor: bound socket", "origin", sock.origin, "address", sock.addr)
	}
	return nil
}

func (r *Reactor) closeAll() {
	for _, sock := range r.sockets {
		if sock.conn != nil {
			_ = sock.conn.Close()
		}
	}
}
