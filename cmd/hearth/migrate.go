package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		before, err := st.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		after, err := st.SchemaVersion(cmd.Context())
		if err != nil {
			return err
		}
		if after == before {
			fmt.Printf("schema up to date (version %d)\n", after)
		} else {
			fmt.Printf("migrated schema: version %d -> %d\n", before, after)
		}
		return nil
	},
}
