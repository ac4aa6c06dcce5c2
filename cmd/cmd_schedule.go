package main

import (
	"fmt"
	"time"

	"petfeeder/internal/models"
	"petfeeder/internal/repository"
	"petfeeder/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Inspect or reset the stored feeding schedule",
}

var scheduleShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored schedule document",
	Long:  "Print the stored schedule document. A blank or corrupt store is replaced with the default schedule first.",
	RunE:  runScheduleShow,
}

var scheduleResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Overwrite the stored schedule with the defaults",
	RunE:  runScheduleReset,
}

func init() {
	scheduleCmd.AddCommand(scheduleShowCmd, scheduleResetCmd)
	rootCmd.AddCommand(scheduleCmd)
}

func runScheduleShow(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(conn, log)

	repos := repository.NewRepository(conn, cfg.Storage.RegionSize)
	store := service.NewScheduleStore(repos.NVM, cfg.Storage.RegionSize, log)
	store.Load(cmd.Context())

	fmt.Fprintln(cmd.OutOrStdout(), string(store.Document()))
	return nil
}

func runScheduleReset(cmd *cobra.Command, args []string) error {
	cfg, _, log, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := openDB(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB(conn, log)

	ctx := cmd.Context()
	repos := repository.NewRepository(conn, cfg.Storage.RegionSize)
	store := service.NewScheduleStore(repos.NVM, cfg.Storage.RegionSize, log)
	sched, err := store.Reset(ctx)
	if err != nil {
		return fmt.Errorf("reset schedule: %w", err)
	}

	err = repos.EventRepo.Append(ctx, models.FeedEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  time.Now().UTC(),
		Type:        models.EventScheduleReset,
		Description: "schedule reset to defaults from cli",
		Metadata:    map[string]any{"schedule": sched},
	})
	if err != nil {
		log.Warnw("feed_event_append_failed", "type", models.EventScheduleReset, "err", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(store.Document()))
	return nil
}
