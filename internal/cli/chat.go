package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/pantry-assistant/internal/chat"
	"github.com/suPer8Hu/pantry-assistant/internal/common"
)

func newChatCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Ask the recipe assistant; without a message, start an interactive session",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.close()

			if _, ok := s.rt.Identity(); !ok {
				return describe(common.ErrNotAuthenticated)
			}
			if len(args) > 0 {
				return send(s, cmd, strings.Join(args, " "))
			}

			fmt.Fprintln(s.out, "Type a message, or /quit to leave.")
			sc := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(s.out, "> ")
				if !sc.Scan() {
					fmt.Fprintln(s.out)
					return sc.Err()
				}
				line := sc.Text()
				if strings.TrimSpace(line) == "/quit" {
					return nil
				}
				if err := send(s, cmd, line); err != nil && !errors.Is(err, chat.ErrEmptyMessage) {
					return err
				}
			}
		},
	}
}

func send(s *session, cmd *cobra.Command, text string) error {
	reply, err := s.rt.Send(cmd.Context(), text)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyMessage) {
			return err
		}
		return describe(err)
	}
	fmt.Fprintf(s.out, "%s: %s\n", reply.Role(), reply.Content)
	return nil
}
