package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/goudanet-go/internal/core/domain"
	"github.com/yndnr/goudanet-go/internal/netcode/input"
	"github.com/yndnr/goudanet-go/internal/netcode/lobby"
	"github.com/yndnr/goudanet-go/internal/netcode/session"
	"github.com/yndnr/goudanet-go/internal/peer/config"
	"github.com/yndnr/goudanet-go/internal/rollback"
	"github.com/yndnr/goudanet-go/internal/sim/world"
	"github.com/yndnr/goudanet-go/internal/telemetry/logger"
	"github.com/yndnr/goudanet-go/internal/telemetry/metric"
)

// play sets up the session and runs it until ctx is done, the configured
// frame count is confirmed, or the session fails.
func play(ctx context.Context, cfg *config.PeerConfig, id uint64, metrics *metric.Registry) error {
	desc, err := setup(ctx, cfg, id, logger.L(ctx).Component("lobby").Slog(), metrics)
	if err != nil {
		return fmt.Errorf("session setup: %w", err)
	}
	ctx = logger.WithSessionID(ctx, desc.ID)
	base := logger.L(ctx)
	log := base.Component("session").Slog()

	game, err := world.New(desc.Seed, len(desc.Participants))
	if err != nil {
		return fmt.Errorf("create world: %w", err)
	}

	var rec *recorder
	if cfg.Journal.Enabled {
		rec, err = openRecorder(cfg, desc, metrics, base.Component("journal").Slog())
		if err != nil {
			return err
		}
		defer rec.Close()
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	opts := []session.Option{
		session.WithLogger(log),
		session.WithMetrics(metrics),
		session.WithOnConfirmed(func(f rollback.ConfirmedFrame) {
			rec.Append(f)
			if cfg.Peer.Frames > 0 && int(f.Frame)+1 >= cfg.Peer.Frames {
				stop()
			}
		}),
	}
	seed := cfg.Peer.InputSeed
	if seed == 0 {
		seed = id
	}
	for _, h := range desc.LocalHandles() {
		src := input.NewScriptedSource(seed + uint64(h))
		opts = append(opts, session.WithInput(h, input.NewCollector(src)))
	}

	sess, err := session.Build(desc, game, opts...)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := metrics.Register(metric.NewCollector(sess.Status)); err != nil {
		log.Warn("session status metrics disabled", "error", err)
	}

	log.Info("session running",
		"local_addr", sess.LocalAddr().String(),
		"handles", sess.HandleCount(),
		"local_handles", sess.LocalHandles(),
		"seed", desc.Seed)

	err = sess.Run(runCtx)
	st := sess.Status()
	log.Info("session finished",
		"current_frame", st.CurrentFrame,
		"confirmed_frame", st.ConfirmedFrame,
		"hits", game.Hits())
	return err
}

// setup produces the session descriptor, from the static roster or by
// discovery and the lobby.
func setup(ctx context.Context, cfg *config.PeerConfig, id uint64, log *slog.Logger, metrics *metric.Registry) (domain.SessionDescriptor, error) {
	if cfg.Static() {
		return cfg.StaticDescriptor()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Peer.LobbyTimeout)
	defer cancel()

	src, err := cfg.NewDiscovery(log, metrics)
	if err != nil {
		return domain.SessionDescriptor{}, err
	}
	defer src.Close()

	if cfg.Peer.Host {
		log.Info("hosting session", "participants", cfg.Peer.Participants, "backend", cfg.Discovery.Backend)
		return lobby.Host(ctx, src, cfg.HostConfig(id, log, metrics))
	}
	log.Info("looking for a host", "backend", cfg.Discovery.Backend)
	return lobby.Join(ctx, src, cfg.LobbyConfig(id, log, metrics))
}
