package main

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/mwaldrop/hearth/internal/billing"
	"github.com/mwaldrop/hearth/internal/recur"
)

var generateAsOf string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Materialize due recurring transactions and subscription charges",
	Long: `generate runs both schedule engines up to today (or --as-of):
recurring transaction templates produce their due occurrences, and
active subscriptions produce their due charges. Both engines are
idempotent, so rerunning generate never duplicates a transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		today := civil.DateOf(time.Now())
		if generateAsOf != "" {
			var err error
			today, err = civil.ParseDate(generateAsOf)
			if err != nil {
				return fmt.Errorf("invalid --as-of date %q: %w", generateAsOf, err)
			}
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		logger := newLogger("[generate] ")
		created, err := recur.New(st, logger).Run(cmd.Context(), today)
		if err != nil {
			return err
		}
		billed, err := billing.New(st, logger).Run(cmd.Context(), today)
		if err != nil {
			return err
		}
		fmt.Printf("created %d recurring transactions, %d subscription charges\n", created, billed)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateAsOf, "as-of", "", "generate up to this date (YYYY-MM-DD) instead of today")
}
