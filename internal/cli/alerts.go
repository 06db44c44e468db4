package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
	"github.com/suPer8Hu/pantry-assistant/internal/config"
	"github.com/suPer8Hu/pantry-assistant/internal/logger"
	"github.com/suPer8Hu/pantry-assistant/internal/store/rabbitmq"
)

func newAlertsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Show items expiring soon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.close()

			if _, ok := s.rt.Identity(); !ok {
				return describe(common.ErrNotAuthenticated)
			}
			set := s.rt.ExpiringSoon()
			if set.Empty() {
				fmt.Fprintln(s.out, "Nothing is expiring soon")
				return nil
			}
			for _, it := range set.Items {
				fmt.Fprintf(s.out, "%-24s %s\n", it.Name, it.ExpirationDate)
			}
			return nil
		},
	}
	cmd.AddCommand(newAlertsWatchCmd())
	return cmd
}

func newAlertsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print expiry alerts published to RabbitMQ by any pantry client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.RabbitURL == "" {
				return errors.New("RABBIT_URL is not set")
			}
			l := logger.Setup(cmd.ErrOrStderr(), cfg.LogLevel)

			c, err := rabbitmq.NewAlertConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, l)
			if err != nil {
				return fmt.Errorf("rabbit: %w", err)
			}
			defer c.Close()

			var mu sync.Mutex
			out := cmd.OutOrStdout()
			err = c.Run(cmd.Context(), func(_ context.Context, m rabbitmq.AlertMessage) error {
				mu.Lock()
				defer mu.Unlock()
				_, err := fmt.Fprintf(out, "%s  %s  %s\n", m.At.Local().Format("2006-01-02 15:04"), m.UserID, m.Message)
				return err
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}
