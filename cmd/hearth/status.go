package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database location, schema version and row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		version, err := st.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		counts, err := st.TableCounts(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Database: %s\n", cfg.Database.Path)
		if info, err := os.Stat(cfg.Database.Path); err == nil {
			fmt.Printf("Size:     %.1f KB\n", float64(info.Size())/1024)
		}
		fmt.Printf("Schema:   version %d\n", version)
		fmt.Println()

		tables := make([]string, 0, len(counts))
		for name := range counts {
			tables = append(tables, name)
		}
		sort.Strings(tables)
		for _, name := range tables {
			fmt.Printf("  %-24s %d\n", name, counts[name])
		}
		return nil
	},
}
