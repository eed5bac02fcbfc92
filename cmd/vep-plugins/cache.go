package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stekaz/VEP-plugins/internal/annotate"
	"github.com/stekaz/VEP-plugins/internal/duckdb"
)

func newCacheCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the result cache",
		Example: `  vep-plugins cache stats
  vep-plugins cache stats --field RegionAnnot_CLNSIG
  vep-plugins cache clear --cache-db results.duckdb`,
	}
	cmd.PersistentFlags().StringVar(&dbPath, "cache-db", "", "DuckDB result cache (default: annotate.cache_db from config)")

	var field string
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cached query counts, source metadata and field values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheStats(cmd.OutOrStdout(), cachePath(dbPath), field)
		},
	}
	stats.Flags().StringVar(&field, "field", "", "List how often each value of this output field occurs")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheClear(cmd.OutOrStdout(), cachePath(dbPath))
		},
	}

	cmd.AddCommand(stats, clearCmd)
	return cmd
}

// cachePath prefers the --cache-db flag over the configured cache.
func cachePath(flag string) string {
	if flag != "" {
		return flag
	}
	return viper.GetString(keyCacheDB)
}

// openExistingCache opens a cache file without creating one.
func openExistingCache(path string) (*duckdb.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("no result cache configured; set %s or pass --cache-db", keyCacheDB)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	store, err := duckdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result cache: %w", err)
	}
	return store, nil
}

func runCacheStats(w io.Writer, path, field string) error {
	store, err := openExistingCache(path)
	if err != nil {
		return err
	}
	defer store.Close()

	queries, results, err := store.Stats()
	if err != nil {
		return err
	}
	meta, err := store.Metadata()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "cache:\t%s\n", path)
	fmt.Fprintf(tw, "queries:\t%d\n", queries)
	fmt.Fprintf(tw, "values:\t%d\n", results)

	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(tw, "%s:\t%s\n", k, meta[k])
	}

	if field != "" {
		counts, err := store.FieldValues(field)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "\n%s\tCOUNT\n", field)
		for _, vc := range counts {
			fmt.Fprintf(tw, "%s\t%d\n", vc.Value, vc.Count)
		}
	}
	return tw.Flush()
}

func runCacheClear(w io.Writer, path string) error {
	store, err := openExistingCache(path)
	if err != nil {
		return err
	}
	defer store.Close()

	queries, _, err := store.Stats()
	if err != nil {
		return err
	}
	if err := store.ClearResults(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Removed %d cached queries from %s\n", queries, path)
	return nil
}

// sourceMetadata describes what the cached results of sources depend on:
// their output fields, decode settings and the size and mtime of every data
// file. Keys are prefixed with the source label.
func sourceMetadata(sources []annotate.Source) (map[string]string, error) {
	meta := make(map[string]string)
	for _, s := range sources {
		prefix := s.Name() + "."

		names := make([]string, 0, len(s.Fields()))
		for _, f := range s.Fields() {
			names = append(names, f.Name)
		}
		meta[prefix+"fields"] = strings.Join(names, ",")

		d, ok := s.(annotate.Describer)
		if !ok {
			continue
		}
		for k, v := range d.Settings() {
			meta[prefix+k] = v
		}
		for _, path := range d.Files() {
			fp, err := duckdb.StatFile(path)
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			meta[prefix+"file:"+path] = fp.String()
		}
	}
	return meta, nil
}
