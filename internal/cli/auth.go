package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/pantry-assistant/internal/app"
	"github.com/suPer8Hu/pantry-assistant/internal/models"
)

type credentials struct {
	email    string
	password string
}

func (c *credentials) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.email, "email", "", "account email")
	cmd.Flags().StringVar(&c.password, "password", "", "account password (read from stdin when omitted)")
}

// resolve reads the password from stdin when the flag was not given.
func (c *credentials) resolve(cmd *cobra.Command) {
	if c.password != "" {
		return
	}
	sc := bufio.NewScanner(cmd.InOrStdin())
	if sc.Scan() {
		c.password = strings.TrimRight(sc.Text(), "\r\n")
	}
}

type authFunc func(a *app.Runtime, ctx context.Context, email, password string) (models.Identity, error)

func newAuthCmd(opts *rootOptions, use, short string, do authFunc) *cobra.Command {
	creds := &credentials{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds.resolve(cmd)

			s, err := openSession(cmd, opts, false)
			if err != nil {
				return err
			}
			defer s.close()

			id, err := do(s.rt, cmd.Context(), creds.email, creds.password)
			if id.ID == "" {
				return describe(err)
			}
			fmt.Fprintf(s.out, "Logged in as %s (%s)\n", id.Email, id.ID)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", describe(err))
			}
			s.printAlerts()
			return nil
		},
	}
	creds.bind(cmd)
	return cmd
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	return newAuthCmd(opts, "login", "Log in with email and password",
		func(a *app.Runtime, ctx context.Context, email, password string) (models.Identity, error) {
			return a.Login(ctx, email, password)
		})
}

func newSignupCmd(opts *rootOptions) *cobra.Command {
	return newAuthCmd(opts, "signup", "Create an account and log in",
		func(a *app.Runtime, ctx context.Context, email, password string) (models.Identity, error) {
			return a.Signup(ctx, email, password)
		})
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, false)
			if err != nil {
				return err
			}
			defer s.close()

			if err := s.rt.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(s.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts, true)
			if err != nil {
				return err
			}
			defer s.close()

			id, ok := s.rt.Identity()
			if !ok {
				fmt.Fprintln(s.out, "Not logged in")
				return nil
			}
			fmt.Fprintf(s.out, "%s (%s)\n", id.Email, id.ID)
			return nil
		},
	}
}
