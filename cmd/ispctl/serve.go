// cmd/ispctl/serve.go
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/isp-bridge/internal/config"
	"github.com/tamzrod/isp-bridge/internal/poller"
	"github.com/tamzrod/isp-bridge/internal/protocol"
	"github.com/tamzrod/isp-bridge/internal/status"
	"github.com/tamzrod/isp-bridge/internal/writer"
)

// serve runs the bridge daemon until SIGINT/SIGTERM.
func serve(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	level := fs.String("log-level", "info", "trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	log, err := newLogger(*level)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		return 2
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(fs.Arg(0))
	if err != nil {
		log.Error().Err(err).Msg("config load failed")
		return 1
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		return 1
	}
	config.Normalize(cfg)

	reg := protocol.NewRegistry(linkConfig(cfg.Bridge.Protocol, log))
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// --------------------
	// Build per-unit pipelines
	// --------------------

	for _, unit := range cfg.Bridge.Units {
		ulog := log.With().Str("unit", unit.ID).Logger()

		// ---- writer plan ----
		plan, err := writer.BuildPlan(unit, cfg.Bridge.StatusMemory.Endpoint)
		if err != nil {
			ulog.Error().Err(err).Msg("writer plan failed")
			return 1
		}

		// ---- writer clients (DATA + STATUS) ----
		clients, closeWriters, err := writer.BuildEndpointClients(unit, plan)
		if err != nil {
			ulog.Error().Err(err).Msg("writer clients failed")
			return 1
		}
		defer closeWriters()

		dataWriter := writer.New(plan, clients)

		// Status writer (optional per unit)
		statusWriter, statusEnabled := writer.NewDeviceStatusWriter(plan, clients)

		tracker := status.NewTracker(unit.Source.VirtualChannel)

		// A unit without reads is never polled and never touches its
		// device; it only publishes a disabled status block.
		if len(unit.Reads) == 0 {
			tracker.Disable()
			g.Go(func() error {
				orchestrate(ctx, ulog, nil, dataWriter, statusWriter, statusEnabled, tracker)
				return nil
			})
			ulog.Info().Bool("status", statusEnabled).Msg("unit disabled: no reads")
			continue
		}

		// ---- poller ----
		p, err := poller.Build(unit, reg, log)
		if err != nil {
			ulog.Error().Err(err).Msg("poller build failed")
			return 1
		}

		// ---- channel between poller and writer ----
		out := make(chan poller.PollResult)

		g.Go(func() error {
			orchestrate(ctx, ulog, out, dataWriter, statusWriter, statusEnabled, tracker)
			return nil
		})

		// poller producer
		g.Go(func() error {
			p.Run(ctx, out)
			return nil
		})

		ulog.Info().
			Str("link", unit.Source.LinkKey()).
			Int("vc", unit.Source.VirtualChannel).
			Int("reads", len(unit.Reads)).
			Int("targets", len(unit.Targets)).
			Bool("status", statusEnabled).
			Msg("unit started")
	}

	err = g.Wait()
	log.Info().Msg("shutting down")
	if err != nil {
		return 1
	}
	return 0
}

// linkConfig maps the YAML budgets onto the protocol engine.
func linkConfig(pc config.ProtocolConfig, log zerolog.Logger) protocol.Config {
	c := protocol.DefaultConfig()
	if pc.PollIntervalUs > 0 {
		c.PollInterval = time.Duration(pc.PollIntervalUs) * time.Microsecond
	}
	if pc.PollBudget > 0 {
		c.PollBudget = pc.PollBudget
	}
	if pc.ReadyRetries > 0 {
		c.ReadyRetries = pc.ReadyRetries
	}
	c.Logger = log.With().Str("component", "protocol").Logger()
	return c
}

// orchestrate owns the unit's status state and the 1 Hz seconds ticker.
// in may be nil for a disabled unit.
func orchestrate(
	ctx context.Context,
	log zerolog.Logger,
	in <-chan poller.PollResult,
	dataWriter writer.Writer,
	statusWriter writer.StatusWriter,
	statusEnabled bool,
	tracker *status.Tracker,
) {
	secTicker := time.NewTicker(time.Second)
	defer secTicker.Stop()

	writeStatus := func(what string) {
		if !statusEnabled {
			return
		}
		if err := statusWriter.WriteStatus(tracker.Snapshot()); err != nil {
			log.Warn().Err(err).Str("on", what).Msg("status write failed")
		}
	}

	// Full block write on start (identity re-assert) if enabled.
	writeStatus("start")

	for {
		select {
		case <-ctx.Done():
			return

		case res := <-in:
			// --- data delivery ---
			if err := dataWriter.Write(res); err != nil {
				log.Warn().Err(err).Msg("writer error")
			}

			code := res.RawErrorCode
			if res.Err != nil && code == 0 {
				code = errorCode(res.Err)
			}
			if tracker.Observe(code) {
				if res.Err != nil {
					log.Warn().Err(res.Err).Uint16("code", code).Msg("poll failed")
				} else {
					log.Info().Msg("poll recovered")
				}
			}
			writeStatus("poll")

		case <-secTicker.C:
			if tracker.Tick() {
				writeStatus("tick")
			}
		}
	}
}
