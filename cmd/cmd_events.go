package main

import (
	"encoding/json"
	"time"

	"petfeeder/internal/repository"
	"petfeeder/internal/service"

	"github.com/spf13/cobra"
)

var (
	eventsType  string
	eventsSince time.Duration
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Print feed events as JSON lines",
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "event type filter, e.g. FEED_DONE or FAULT")
	eventsCmd.Flags().DurationVar(&eventsSince, "since", 0, "only events newer than this, e.g. 24h")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(conn, log)

	filter := service.LogFilter{Type: eventsType}
	if eventsSince > 0 {
		filter.From = time.Now().Add(-eventsSince)
	}
	events, err := service.NewEventLogService(repository.NewRepository(conn, cfg.Storage.RegionSize).EventRepo).
		List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}
	return nil
}
