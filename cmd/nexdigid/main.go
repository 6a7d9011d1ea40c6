// Command nexdigid is the NexDigi node daemon: it loads configuration,
// brings up the configured radio transports, and runs the Frame, Backbone,
// and Trust planes against them. The HTTP/WebSocket control surface,
// persistent chat/BBS stores, and the NWS poller are explicitly out of
// scope (spec.md section 1) and are not started here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/na4wx/nexdigi/internal/auth"
	"github.com/na4wx/nexdigi/internal/ax25"
	"github.com/na4wx/nexdigi/internal/backbone"
	"github.com/na4wx/nexdigi/internal/config"
	"github.com/na4wx/nexdigi/internal/digipeater"
	"github.com/na4wx/nexdigi/internal/events"
	"github.com/na4wx/nexdigi/internal/loadbalance"
	"github.com/na4wx/nexdigi/internal/logging"
	"github.com/na4wx/nexdigi/internal/mesh"
	"github.com/na4wx/nexdigi/internal/metrics"
	"github.com/na4wx/nexdigi/internal/qos"
	"github.com/na4wx/nexdigi/internal/transport"
)

func main() {
	configPath := pflag.String("config", "config.yaml", "path to the node configuration document")
	metricsAddr := pflag.String("metrics-addr", ":9095", "address to serve /metrics on")
	logDir := pflag.String("log-dir", "logs", "directory for rotating daemon logs")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		charmlog.Fatal("load config", "err", err)
	}
	config.BindFlags(pflag.CommandLine, &cfg)
	pflag.Parse()

	logger, err := logging.New(*logDir, "nexdigid", charmlog.InfoLevel)
	if err != nil {
		charmlog.Fatal("init logging", "err", err)
	}
	defer logger.Close()

	bus := events.New()
	engine := digipeater.NewEngine(cfg.Digipeater.SeenCache.TTL, cfg.Digipeater.SeenCache.MaxEntries, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drivers := startTransports(ctx, cfg, logger)
	wireDigipeaterChannels(engine, cfg, drivers)
	go pumpReceivedFrames(ctx, engine, drivers, bus, logger)

	scheduler := qos.NewScheduler(nil, 0)
	var mgr *backbone.Manager
	if cfg.Backbone.Enabled {
		mgr = setupBackbone(cfg, scheduler, logger)
	}

	prometheus.MustRegister(metrics.New(engine, scheduler))
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(*metricsAddr, nil); err != nil {
			logger.Error("metrics server exited", "err", err)
		}
	}()

	logger.Info("nexdigi started", "callsign", cfg.Backbone.LocalCallsign, "backbone", cfg.Backbone.Enabled)
	_ = mgr

	waitForShutdown(logger)
	cancel()
}

func startTransports(ctx context.Context, cfg config.Config, logger *logging.Logger) map[string]transport.Driver {
	drivers := make(map[string]transport.Driver)
	for _, ch := range cfg.Channels {
		var d transport.Driver
		switch ch.Type {
		case "mock":
			d = transport.NewMock(0, nil)
		case "kiss-tcp":
			d = transport.NewTCP(ch.Host, 0)
		case "serial":
			d = transport.NewSerial(ch.Port, ch.Baud)
		default:
			logger.Error("unknown channel type, skipping", "channel", ch.ID, "type", ch.Type)
			continue
		}
		drivers[ch.ID] = d
		go func(id string, d transport.Driver) {
			if err := d.Run(ctx); err != nil {
				logger.Error("transport exited", "channel", id, "err", err)
			}
		}(ch.ID, d)
	}
	return drivers
}

func wireDigipeaterChannels(engine *digipeater.Engine, cfg config.Config, drivers map[string]transport.Driver) {
	chanByID := make(map[string]config.ChannelConfig, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		chanByID[ch.ID] = ch
	}

	for id, dc := range cfg.Digipeater.Channels {
		drv, ok := drivers[id]
		if !ok {
			continue
		}
		mode := digipeater.ModeDigipeat
		if dc.Mode == "listen-only" {
			mode = digipeater.ModeReceiveOnly
		}
		role := digipeater.RoleFillIn
		if dc.Role == "wide" {
			role = digipeater.RoleWide
		}

		var callsign ax25.Callsign
		if ch, ok := chanByID[id]; ok && ch.Callsign != "" {
			if parsed, err := ax25.ParseCallsign(ch.Callsign); err == nil {
				callsign = parsed
			}
		}

		aliases := make([]ax25.Callsign, 0, len(dc.PersonalAliases))
		for _, a := range dc.PersonalAliases {
			if parsed, err := ax25.ParseCallsign(a); err == nil {
				aliases = append(aliases, parsed)
			}
		}

		engine.AddChannel(digipeater.Config{
			ID:                      id,
			Mode:                    mode,
			Role:                    role,
			Callsign:                callsign,
			PersonalAliases:         aliases,
			MaxWideN:                dc.MaxWideN,
			AppendCallsign:          dc.AppendCallsign,
			IGateForward:            dc.IGateForward,
			PersonalAliasPrecedence: true,
		}, drv)
	}
}

func pumpReceivedFrames(ctx context.Context, engine *digipeater.Engine, drivers map[string]transport.Driver, bus *events.Bus, logger *logging.Logger) {
	for id, d := range drivers {
		go func(channelID string, d transport.Driver) {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-d.Events():
					if !ok {
						return
					}
					if !ev.IsFrame() {
						continue
					}
					outcome, err := engine.Process(channelID, ev.Frame)
					if err != nil {
						continue
					}
					if outcome == digipeater.OutcomeDigipeated {
						bus.Publish(events.FrameDigipeated, map[string]string{"channel": channelID})
					}
				}
			}
		}(id, d)
	}
}

func setupBackbone(cfg config.Config, scheduler *qos.Scheduler, logger *logging.Logger) *backbone.Manager {
	topo := mesh.New()
	balancerAlg := loadbalance.Weighted
	switch cfg.Backbone.LoadBalancing {
	case "round-robin":
		balancerAlg = loadbalance.RoundRobin
	case "least-loaded":
		balancerAlg = loadbalance.LeastLoaded
	}
	balancer := loadbalance.New(balancerAlg)

	var authMgr *auth.Manager
	if cfg.Backbone.Security.Enabled {
		identity, err := auth.NewIdentity()
		if err != nil {
			logger.Fatal("generate identity", "err", err)
		}
		authMgr = auth.NewManager(cfg.Backbone.LocalCallsign, identity, nil, auth.PolicyTrustOnFirstUse)
		authMgr.Trust(cfg.Backbone.LocalCallsign, identity.Public)
	}

	return backbone.NewManager(cfg.Backbone.LocalCallsign, topo, balancer, scheduler, authAdapter{authMgr})
}

// authAdapter satisfies backbone.Authenticator whether or not the trust
// plane is enabled.
type authAdapter struct{ m *auth.Manager }

func (a authAdapter) IsAuthenticated(peer string) bool {
	if a.m == nil {
		return true
	}
	return a.m.IsAuthenticated(peer)
}

func (a authAdapter) InitiateAuth(peer, nonce string) error {
	if a.m == nil {
		return nil
	}
	return a.m.InitiateAuth(peer, nonce)
}

func waitForShutdown(logger *logging.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutdown signal received")
	time.Sleep(100 * time.Millisecond)
}
