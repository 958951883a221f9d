// Package gateway wires every component (the reactor, ingress,
// dispatcher, one worker per MSC agent, the broadcaster, and the
// responder) into a single errgroup and runs them for the lifetime of
// the process.
package gateway

import (
	"context"
	"net"

	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/c360/gatekit/broadcaster"
	"github.com/c360/gatekit/config"
	"github.com/c360/gatekit/dispatcher"
	"github.com/c360/gatekit/health"
	"github.com/c360/gatekit/ingress"
	"github.com/c360/gatekit/message"
	"github.com/c360/gatekit/metric"
	"github.com/c360/gatekit/mscworker"
	"github.com/c360/gatekit/queue"
	"github.com/c360/gatekit/reactor"
	"github.com/c360/gatekit/responder"
)

const defaultCmdQueueSize = 1000

// Gateway holds the wired set of running components.
type Gateway struct {
	cfg     *config.Config
	metrics *metric.Metrics
	monitor *health.Monitor
	logger  *slog.Logger

	cmdQueue      *queue.Queue
	reactor       *reactor.Reactor
	ingress       *ingress.Ingress
	dispatcher    *dispatcher.Dispatcher
	broadcaster   *broadcaster.Broadcaster
	responder     *responder.Responder
	mscWorkers    []*mscworker.Worker
	metricsServer *metric.Server
}

// Build wires every component from cfg, including the metrics/health HTTP
// server, without starting any of them.
func Build(cfg *config.Config, testMode bool, metricsServer *metric.Server, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) (*Gateway, error) {
	queueSize := defaultCmdQueueSize
	if cfg.Cmd.AgentSettings != nil && cfg.Cmd.AgentSettings.QueueSize > 0 {
		queueSize = cfg.Cmd.AgentSettings.QueueSize
	}
	cmdQueue, err := queue.New(queueSize, func(pkt message.Packet) {
		metrics.RecordPacketDropped(pkt.Origin)
	})
	if err != nil {
		return nil, err
	}

	respond, err := responder.New(metrics, logger)
	if err != nil {
		return nil, err
	}

	broadcast, err := broadcaster.New(cfg.Cmd.RemoteAddress, metrics, logger)
	if err != nil {
		return nil, err
	}

	disp := dispatcher.New(int64(cfg.Cmd.ResponseTimeoutMs), respond.FinalResponses(), metrics, logger)

	mscIDs := make([]string, 0, len(cfg.MSCAgents))
	subCmdChs := make(map[string]chan<- message.SubCommand, len(cfg.MSCAgents))
	mscTargets := make(map[string]reactor.Target, len(cfg.MSCAgents))
	workers := make([]*mscworker.Worker, 0, len(cfg.MSCAgents))

	for _, agent := range cfg.MSCAgents {
		agentQueueSize := defaultCmdQueueSize
		if agent.AgentSettings != nil && agent.AgentSettings.QueueSize > 0 {
			agentQueueSize = agent.AgentSettings.QueueSize
		}
		worker, err := mscworker.New(agent.ID, agent.RemoteAddress, agentQueueSize, disp.AgentReplies(), broadcast.Events(), metrics, monitor, logger)
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
		mscIDs = append(mscIDs, agent.ID)
		subCmdChs[agent.ID] = worker.SubCommands()
		mscTargets[agent.ID] = worker
	}
	disp.SetTargets(mscIDs, subCmdChs)

	react := reactor.New(cfg, cmdQueue, mscTargets, metrics, monitor, logger)

	ing, err := ingress.New(cmdQueue, cfg.Cmd.RemoteAddress, disp.ValidatedCommands(), testMode, metrics, logger)
	if err != nil {
		return nil, err
	}

	return &Gateway{
		cfg:           cfg,
		metrics:       metrics,
		monitor:       monitor,
		logger:        logger,
		cmdQueue:      cmdQueue,
		reactor:       react,
		ingress:       ing,
		dispatcher:    disp,
		broadcaster:   broadcast,
		responder:     respond,
		mscWorkers:    workers,
		metricsServer: metricsServer,
	}, nil
}

// ReactorReady is closed once the reactor has bound every configured
// socket. Useful in tests that need to learn an ephemeral bound port
// before sending traffic.
func (g *Gateway) ReactorReady() <-chan struct{} {
	return g.reactor.Ready()
}

// ReactorAddr returns the actual local address the reactor bound for the
// given origin ("cmd" or "msc_<id>").
func (g *Gateway) ReactorAddr(origin string) (*net.UDPAddr, bool) {
	return g.reactor.BoundAddr(origin)
}

// Run starts every component, including the metrics/health HTTP server,
// under one errgroup and blocks until ctx is cancelled or any task returns
// an error.
func (g *Gateway) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error { return g.reactor.Run(gctx) })
	group.Go(func() error { return g.ingress.Run(gctx) })
	group.Go(func() error { return g.dispatcher.Run(gctx) })
	group.Go(func() error { return g.broadcaster.Run(gctx) })
	group.Go(func() error { return g.responder.Run(gctx) })
	for _, worker := range g.mscWorkers {
		worker := worker
		group.Go(func() error { return worker.Run(gctx) })
	}
	group.Go(func() error { return g.metricsServer.Start() })
	group.Go(func() error {
		<-gctx.Done()
		return g.metricsServer.Stop()
	})

	return group.Wait()
}
