package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/freerooms"
	"github.com/W1ndysBot/QFNUGetFreeClassrooms/internal/store"
	"github.com/spf13/cobra"
)

var (
	queryBuilding string
	queryWeekday  int
	queryPeriod   string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query which classrooms are currently free",
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

		result, err := svc.GetFreeRooms(ctx, freerooms.QueryOptions{
			BuildingPrefix:  queryBuilding,
			WeekdayOverride: queryWeekday,
			Period:          queryPeriod,
		})
		if err != nil {
			return fmt.Errorf("querying free rooms: %w", err)
		}

		scope := "all day"
		if result.Period != "" {
			scope = "period " + result.Period
		}
		fmt.Printf("%s week %d weekday %d (%s): %d free rooms\n",
			result.Term, result.Week, result.Weekday, scope, len(result.FreeRooms))
		for _, room := range result.FreeRooms {
			fmt.Printf("  %s\n", room)
		}

		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryBuilding, "building", "", "Room name prefix, e.g. 格物楼A")
	queryCmd.Flags().IntVar(&queryWeekday, "weekday", 0, "Weekday override 1-7 (Monday=1), default today")
	queryCmd.Flags().StringVar(&queryPeriod, "period", "", `Coarse slot code ("0102") or single period ("第3节")`)
	rootCmd.AddCommand(queryCmd)
}
