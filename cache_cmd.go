package main

import (
	"fmt"
	"io"

	"github.com/dgnsrekt/tribunal-tts/internal/cache"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the synthesized audio cache",
	Args:  cobra.NoArgs,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache usage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := cache.NewManager(cfg.CacheConfig())
		if err != nil {
			return fmt.Errorf("unable to open cache: %w", err)
		}
		defer m.Close() //nolint:errcheck

		memory, disk := m.Stats()
		return writeCacheStats(cmd.OutOrStdout(), cfg.CacheConfig().DiskPath, memory, disk)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached audio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := cache.NewManager(cfg.CacheConfig())
		if err != nil {
			return fmt.Errorf("unable to open cache: %w", err)
		}
		defer m.Close() //nolint:errcheck

		_, disk := m.Stats()
		if err := m.Clear(); err != nil {
			return fmt.Errorf("unable to clear cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s of cached audio (%d items)\n", //nolint:errcheck
			humanize.Bytes(uint64(disk.Size)), disk.Items) //nolint:gosec
		return nil
	},
}

func writeCacheStats(w io.Writer, dir string, memory, disk cache.Stats) error {
	_, err := fmt.Fprintf(w,
		"Directory: %s\nDisk:      %s / %s, %s items (%s uncompressed)\nMemory:    %s / %s\n",
		dir,
		humanize.Bytes(uint64(disk.Size)), humanize.Bytes(uint64(disk.Capacity)), //nolint:gosec
		humanize.Comma(disk.Items), humanize.Bytes(uint64(disk.Stored)), //nolint:gosec
		humanize.Bytes(uint64(memory.Size)), humanize.Bytes(uint64(memory.Capacity)), //nolint:gosec
	)
	return err //nolint:wrapcheck
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
