package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/suPer8Hu/pantry-assistant/internal/ai"
	"github.com/suPer8Hu/pantry-assistant/internal/backend"
	"github.com/suPer8Hu/pantry-assistant/internal/chat"
	"github.com/suPer8Hu/pantry-assistant/internal/config"
	"github.com/suPer8Hu/pantry-assistant/internal/db"
	"github.com/suPer8Hu/pantry-assistant/internal/expiry"
	"github.com/suPer8Hu/pantry-assistant/internal/inventory"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
	"github.com/suPer8Hu/pantry-assistant/internal/store"
	"github.com/suPer8Hu/pantry-assistant/internal/store/rabbitmq"
	"github.com/suPer8Hu/pantry-assistant/internal/store/redisstore"
	"github.com/suPer8Hu/pantry-assistant/internal/store/sqlstore"
)

// Runtime is an App built from configuration together with the resources
// it owns.
type Runtime struct {
	*App
	Registry *prometheus.Registry

	closers []func() error
}

// Build opens the identity slot, the optional alert publisher and the chat
// collaborator described by cfg.
func Build(ctx context.Context, cfg config.Config, l *slog.Logger) (*Runtime, error) {
	rt := &Runtime{Registry: prometheus.NewRegistry()}
	collector := metrics.NewCollector(rt.Registry)

	slot, err := rt.openSlot(ctx, cfg)
	if err != nil {
		_ = rt.Shutdown()
		return nil, err
	}

	client := backend.NewClient(cfg.APIURL,
		backend.WithRateLimit(cfg.BackendRateLimit),
		backend.WithMetrics(collector),
		backend.WithLogger(l),
	)

	notifiers := []expiry.Notifier{expiry.LogNotifier{Logger: l}}
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewAlertPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			_ = rt.Shutdown()
			return nil, fmt.Errorf("rabbit: %w", err)
		}
		rt.closers = append(rt.closers, pub.Close)
		notifiers = append(notifiers, pub)
	}

	responder, err := responderFor(ctx, cfg, collector)
	if err != nil {
		_ = rt.Shutdown()
		return nil, err
	}

	rt.App = New(Options{
		Slot:                  slot,
		Backend:               client,
		SlotSecret:            cfg.SlotSecret,
		RequestTimeout:        cfg.RequestTimeout,
		ExpiryWindowDays:      cfg.ExpiryWindowDays,
		ExpiryRecheckInterval: cfg.ExpiryRecheckInterval,
		Responder:             responder,
		Notifiers:             notifiers,
		Metrics:               collector,
		Logger:                l,
	})
	return rt, nil
}

func (rt *Runtime) openSlot(ctx context.Context, cfg config.Config) (store.Slot, error) {
	switch cfg.StateDriver {
	case "redis":
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		rt.closers = append(rt.closers, rs.Close)
		return rs, nil
	case "sqlite", "mysql":
		gdb, err := db.Open(cfg.StateDriver, cfg.StateDSN)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := gdb.DB(); err == nil {
			rt.closers = append(rt.closers, sqlDB.Close)
		}
		return sqlstore.NewRepo(gdb)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported PANTRY_STATE_DRIVER=%q", cfg.StateDriver)
	}
}

// responderFor returns nil for the backend responder, which New defaults to.
func responderFor(ctx context.Context, cfg config.Config, rec metrics.Recorder) (ResponderFactory, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.ChatResponder))
	if name == "" || name == "backend" {
		return nil, nil
	}

	reg := ai.NewRegistry()
	reg.Register("ollama", cfg.OllamaModel, func(ctx context.Context, model string) (ai.Provider, error) {
		p := ai.NewOllamaProvider(cfg.OllamaBaseURL, model)
		p.Metrics = rec
		return p, nil
	})

	provider, err := reg.Get(ctx, name, "")
	if err != nil {
		return nil, fmt.Errorf("CHAT_RESPONDER: %w (known: backend, %s)", err, strings.Join(reg.Names(), ", "))
	}
	return func(_ string, mirror *inventory.Mirror) chat.Responder {
		return ai.NewPantryResponder(provider, mirror)
	}, nil
}

// Shutdown disposes the scope and releases everything Build opened.
func (rt *Runtime) Shutdown() error {
	if rt.App != nil {
		rt.App.Close()
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
