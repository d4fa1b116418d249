package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/knowmaps/internal/db"
	"github.com/kailas-cloud/knowmaps/internal/repository/embcache"
	embeddinguc "github.com/kailas-cloud/knowmaps/internal/usecase/embedding"
)

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the durable embedding cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print entry counts and vector dimensions of the embedding snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var kv db.KVStore
			if c.cfg.Cache.Backend == "redis" {
				store, err := openStore(cmd.Context(), c.cfg.Database)
				if err != nil {
					return err
				}
				defer store.Close()
				kv = store
			}
			snap, err := snapshotStore(c.cfg, kv)
			if err != nil {
				return err
			}
			entries, err := snap.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load snapshot: %w", err)
			}

			s := summarize(entries)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:    %s\n", c.cfg.Cache.Backend)
			fmt.Fprintf(out, "entries:    %d\n", s.total)
			fmt.Fprintf(out, "text:       %d\n", s.text)
			fmt.Fprintf(out, "items:      %d\n", s.items)
			fmt.Fprintf(out, "dimensions: %s\n", s.dimensions())
			return nil
		},
	})
	return cmd
}

type cacheSummary struct {
	total int
	text  int
	items int
	dims  map[int]int
}

func summarize(entries map[string][]float32) cacheSummary {
	s := cacheSummary{total: len(entries), dims: make(map[int]int)}
	for key, v := range entries {
		switch {
		case strings.HasPrefix(key, embcache.TextKeyPrefix):
			s.text++
		case strings.HasPrefix(key, embeddinguc.ItemKeyPrefix):
			s.items++
		}
		s.dims[len(v)]++
	}
	return s
}

func (s cacheSummary) dimensions() string {
	if len(s.dims) == 0 {
		return "-"
	}
	dims := make([]int, 0, len(s.dims))
	for d := range s.dims {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	parts := make([]string, 0, len(dims))
	for _, d := range dims {
		parts = append(parts, fmt.Sprintf("%d (%d)", d, s.dims[d]))
	}
	return strings.Join(parts, ", ")
}
