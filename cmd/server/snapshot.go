package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"econia/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect state snapshots",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print a summary of a snapshot file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("file")
			if path == "" {
				path = snapshot.Path(a.conf.Snapshot.Dir)
			}
			snap, err := snapshot.Load(path)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap.Summary())
		},
	}
	show.Flags().String("file", "", "snapshot file (default: snapshot dir of the home)")

	cmd.AddCommand(show)
	return cmd
}
