package cmd

import (
	"fmt"
	"time"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/store"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/term"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session, roster and term status",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.New(dataDir)
		if err != nil {
			return err
		}
		defer s.Close()

		now := time.Now()
		termStr := term.Current(now)
		week, weekday := term.WeekAndDay(now, termStr, cfg.Semester.StartDates)

		fmt.Printf("Term:    %s (week %d, weekday %d)\n", termStr, week, weekday)

		if cfg.Account.Username == "" {
			fmt.Println("Account: not configured")
		} else {
			fmt.Printf("Account: %s\n", cfg.Account.Username)
			if at := s.SessionValidatedAt(cfg.Account.Username); at != "" {
				fmt.Printf("Session: persisted, last validated %s\n", at)
			} else {
				fmt.Println("Session: none persisted")
			}
		}

		r, err := loadRoster(s)
		if err != nil {
			return err
		}
		source := "built-in default"
		switch {
		case cfg.Data.Roster != "":
			source = cfg.Data.Roster
		case s.RoomCount() > 0:
			source = "imported"
		}
		fmt.Printf("Roster:  %d rooms (%s)\n", r.Len(), source)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
