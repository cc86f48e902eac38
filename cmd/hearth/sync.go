package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replicate the local database against the cloud",
}

func init() {
	syncCmd.AddCommand(syncUploadCmd)
	syncCmd.AddCommand(syncDownloadCmd)
	syncCmd.AddCommand(syncLoginCmd)
	syncCmd.AddCommand(syncWatchCmd)
}

var syncUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Push every synced table to the cloud",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		eng, err := newSyncEngine(st)
		if err != nil {
			return err
		}
		if err := eng.Upload(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("upload complete")
		return nil
	},
}

var syncDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Replace local synced tables with the cloud copy",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		eng, err := newSyncEngine(st)
		if err != nil {
			return err
		}
		if err := eng.Download(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("download complete")
		return nil
	},
}

var syncLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Reconcile local and cloud data after sign-in",
	Long: `login probes the cloud members collection and picks a direction:
an empty cloud account receives the local data, otherwise the cloud copy
replaces the local synced tables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}
		eng, err := newSyncEngine(st)
		if err != nil {
			return err
		}
		if err := eng.HandleSignIn(cmd.Context()); err != nil {
			return err
		}
		defer eng.StopWatch()
		fmt.Printf("signed in, status: %s\n", eng.Status())
		return nil
	},
}

var syncWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream remote change events until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		eng, err := newSyncEngine(st)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		eng.StartWatch(ctx)
		fmt.Println("watching remote collections, ctrl-c to stop")
		<-ctx.Done()
		eng.StopWatch()
		return nil
	},
}
