package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/geoticket/internal/cache"
	"github.com/sells-group/geoticket/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and administer the geocode cache",
}

var (
	cacheQueryTier     string
	cacheQueryPriority string
	cacheQueryLocked   bool
	cacheQueryLimit    int
)

var cacheQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query current cache records by tier, priority, or lock state",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.NewSQLite(cmd.Context(), cfg.Cache.DBPath)
		if err != nil {
			return eris.Wrap(err, "cache query: open store")
		}
		defer func() { _ = store.Close() }()

		filter := cache.Filter{Limit: cacheQueryLimit}
		if cacheQueryTier != "" {
			filter.QualityTiers = []model.QualityTier{model.QualityTier(cacheQueryTier)}
		}
		if cacheQueryPriority != "" {
			filter.ReviewPriority = []model.ReviewPriority{model.ReviewPriority(cacheQueryPriority)}
		}
		if cmd.Flags().Changed("locked") {
			filter.Locked = &cacheQueryLocked
		}

		records, err := store.Query(cmd.Context(), filter)
		if err != nil {
			return eris.Wrap(err, "cache query: run")
		}

		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return eris.Wrap(err, "cache query: marshal")
		}
		fmt.Println(string(data))
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache-wide statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.NewSQLite(cmd.Context(), cfg.Cache.DBPath)
		if err != nil {
			return eris.Wrap(err, "cache stats: open store")
		}
		defer func() { _ = store.Close() }()

		stats, err := store.Statistics(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "cache stats: run")
		}

		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return eris.Wrap(err, "cache stats: marshal")
		}
		fmt.Println(string(data))
		return nil
	},
}

var cacheLockReason string

var cacheLockCmd = &cobra.Command{
	Use:   "lock <ticket_number>",
	Short: "Lock a ticket's current record against reprocessing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.NewSQLite(cmd.Context(), cfg.Cache.DBPath)
		if err != nil {
			return eris.Wrap(err, "cache lock: open store")
		}
		defer func() { _ = store.Close() }()

		actor := uuid.NewString()
		if err := store.Lock(cmd.Context(), args[0], cacheLockReason, actor); err != nil {
			return eris.Wrap(err, "cache lock: run")
		}
		fmt.Printf("locked %s (actor=%s)\n", args[0], actor)
		return nil
	},
}

var cacheUnlockCmd = &cobra.Command{
	Use:   "unlock <ticket_number>",
	Short: "Unlock a ticket's current record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.NewSQLite(cmd.Context(), cfg.Cache.DBPath)
		if err != nil {
			return eris.Wrap(err, "cache unlock: open store")
		}
		defer func() { _ = store.Close() }()

		if err := store.Unlock(cmd.Context(), args[0]); err != nil {
			return eris.Wrap(err, "cache unlock: run")
		}
		fmt.Printf("unlocked %s\n", args[0])
		return nil
	},
}

func init() {
	cacheQueryCmd.Flags().StringVar(&cacheQueryTier, "tier", "", "filter by quality tier")
	cacheQueryCmd.Flags().StringVar(&cacheQueryPriority, "priority", "", "filter by review priority")
	cacheQueryCmd.Flags().BoolVar(&cacheQueryLocked, "locked", false, "filter by lock state")
	cacheQueryCmd.Flags().IntVar(&cacheQueryLimit, "limit", 0, "maximum records to return (0 = unlimited)")

	cacheLockCmd.Flags().StringVar(&cacheLockReason, "reason", "manual review", "reason recorded with the lock")

	cacheCmd.AddCommand(cacheQueryCmd, cacheStatsCmd, cacheLockCmd, cacheUnlockCmd)
}
