// Package cli is the pantry command-line front end.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/pantry-assistant/internal/app"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/config"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/metrics"
)

type rootOptions struct {
	metricsAddr string
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "pantry",
		Short: "Track your pantry, get expiry reminders and ask for recipe ideas",
		Long: `pantry talks to the pantry backend: it keeps you logged in between runs,
lists and edits your inventory, warns about items expiring within a few
days and relays chat messages to the recipe assistant.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	root.AddCommand(
		newLoginCmd(opts),
		newSignupCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newInventoryCmd(opts),
		newAlertsCmd(opts),
		newChatCmd(opts),
	)
	return root
}

func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// session is one command's view of the client: a runtime built from the
// environment plus the optional metrics listener.
type session struct {
	rt      *app.Runtime
	out     io.Writer
	metrics *http.Server
}

// openSession builds the runtime. With restore set it also loads the
// persisted identity and its inventory.
func openSession(cmd *cobra.Command, opts *rootOptions, restore bool) (*session, error) {
	cfg := config.Load()
	l := logger.Setup(cmd.ErrOrStderr(), cfg.LogLevel)

	rt, err := app.Build(cmd.Context(), cfg, l)
	if err != nil {
		return nil, err
	}
	s := &session{rt: rt, out: cmd.OutOrStdout()}

	if opts.metricsAddr != "" {
		s.metrics = &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           metrics.Handler(rt.Registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Warn("metrics listener", "addr", opts.metricsAddr, "error", err.Error())
			}
		}()
	}

	if restore {
		if err := rt.Start(cmd.Context()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not load inventory: %v\n", err)
		}
	}
	return s, nil
}

func (s *session) close() {
	if s.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = s.metrics.Shutdown(ctx)
		cancel()
	}
	_ = s.rt.Shutdown()
}

// printAlerts writes every alert raised so far without waiting for more.
func (s *session) printAlerts() {
	for {
		select {
		case a := <-s.rt.Alerts():
			fmt.Fprintln(s.out, a.Message())
		default:
			return
		}
	}
}

// describe turns an operation error into the message shown to the user.
func describe(err error) error {
	switch common.Kind(err) {
	case "unauthenticated":
		return errors.New("not logged in, run 'pantry login' first")
	case "busy":
		return errors.New("another operation is still in progress")
	case "transport":
		return fmt.Errorf("could not reach the pantry backend: %w", err)
	case "rejected":
		return fmt.Errorf("the pantry backend refused the request: %w", err)
	case "auth":
		return fmt.Errorf("login failed: %w", err)
	default:
		return err
	}
}
