package cmd

import (
	"fmt"
	"time"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/config"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/freerooms"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/portal"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/roster"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dataDir    string
	verbose    bool
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "freeclassrooms",
	Short: "Find unoccupied classrooms via the QFNU timetable portal",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if !cmd.Flags().Changed("data-dir") {
			dataDir = cfg.Data.Dir
		}

		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Directory for durable state")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func Execute() error {
	return rootCmd.Execute()
}

// newService assembles the query service against the given store.
func newService(s *store.Store) (*freerooms.Service, error) {
	if err := cfg.RequireAccount(); err != nil {
		return nil, err
	}
	if cfg.OCR.URL == "" {
		return nil, &config.ConfigError{Field: "ocr.url", Err: fmt.Errorf("OCR service URL must be set")}
	}

	client, err := portal.NewClient(cfg.Portal.BaseURL, cfg.Portal.RateLimit,
		time.Duration(cfg.Portal.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}

	sessions := portal.NewSessionManager(
		client,
		portal.NewHTTPSolver(cfg.OCR.URL),
		s,
		cfg.Account.Username,
		cfg.Account.Password,
		time.Duration(cfg.Portal.LoginTimeoutSeconds)*time.Second,
	)

	r, err := loadRoster(s)
	if err != nil {
		return nil, err
	}

	return &freerooms.Service{
		Sessions:   sessions,
		Roster:     r,
		StartDates: cfg.Semester.StartDates,
	}, nil
}

// loadRoster picks the roster source: an explicitly configured file wins,
// then a previously imported roster from the store, then the built-in
// default list.
func loadRoster(s *store.Store) (*roster.Roster, error) {
	if cfg.Data.Roster != "" {
		return roster.Load(cfg.Data.Roster)
	}
	if s != nil {
		names, err := s.LoadRosterNames()
		if err != nil {
			return nil, fmt.Errorf("loading stored roster: %w", err)
		}
		if len(names) > 0 {
			return roster.FromNames(names), nil
		}
	}
	return roster.Default(), nil
}
