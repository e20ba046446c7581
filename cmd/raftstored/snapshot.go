package main

import (
	"context"
	"fmt"

	"github.com/cuemby/raftstore/pkg/raftlog"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect this node's snapshot state",
}

var snapshotStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the currently installed snapshot's index, term, and path",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		dataDir, _ := cmd.Flags().GetString("data-dir")

		facade, err := raftlog.Open(dataDir, nodeID)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}
		defer facade.Close()

		snap, err := facade.GetCurrentSnapshot(context.Background())
		if err != nil {
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		if snap == nil {
			fmt.Println("no snapshot has been taken on this node")
			return nil
		}

		fmt.Printf("index:      %d\n", snap.Index)
		fmt.Printf("term:       %d\n", snap.Term)
		fmt.Printf("path:       %s\n", snap.Path)
		fmt.Printf("membership: %v\n", snap.Membership.Members)
		return nil
	},
}

func init() {
	snapshotStatusCmd.Flags().String("node-id", "node-1", "This node's identifier")
	snapshotStatusCmd.Flags().String("data-dir", "./data", "Directory for the log, metadata, and search engine")
	snapshotCmd.AddCommand(snapshotStatusCmd)
}
