package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/store"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate against the portal and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		svc, err := newService(s)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		// Drop any restored session first so this always runs a real
		// login rather than a probe.
		svc.Sessions.Invalidate()
		if err := svc.Sessions.EnsureLogin(ctx); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s, session persisted.\n", cfg.Account.Username)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
