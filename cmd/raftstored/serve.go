package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/raftstore/pkg/config"
	"github.com/cuemby/raftstore/pkg/log"
	"github.com/cuemby/raftstore/pkg/metrics"
	"github.com/cuemby/raftstore/pkg/raftlog"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func resolveMetricsAddr(cmd *cobra.Command, cfg config.StorageConfig) string {
	if cmd.Flags().Changed("metrics-addr") {
		addr, _ := cmd.Flags().GetString("metrics-addr")
		return addr
	}
	if !cfg.Metrics.Enabled {
		return ""
	}
	if cfg.Metrics.Addr != "" {
		return cfg.Metrics.Addr
	}
	addr, _ := cmd.Flags().GetString("metrics-addr")
	return addr
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the storage backend, serving the log, metadata, and search engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeID, _ := cmd.Flags().GetString("node-id")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		configFile, _ := cmd.Flags().GetString("config")
		raftAddr, _ := cmd.Flags().GetString("raft-addr")
		bootstrap, _ := cmd.Flags().GetBool("bootstrap")

		if nodeID == "" {
			nodeID = uuid.New().String()
		}
		cfg := config.Default(nodeID, dataDir)
		if configFile != "" {
			loaded, err := config.Load(configFile)
			if err != nil {
				return err
			}
			cfg = loaded
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if cfg.Log.Level != "" {
			log.Init(log.Config{Level: log.Level(cfg.Log.Level), JSONOutput: cfg.Log.JSON})
		}

		facade, err := raftlog.Open(cfg.DataDir, cfg.NodeID)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}

		state, err := facade.State()
		if err != nil {
			return fmt.Errorf("failed to read node state: %w", err)
		}
		fmt.Printf("node %s: %s\n", cfg.NodeID, state)

		raftNode, err := raftlog.StartRaft(facade, raftlog.RaftOptions{
			BindAddr:  raftAddr,
			Bootstrap: bootstrap && state == raftlog.NodeUninitialized,
		})
		if err != nil {
			return fmt.Errorf("failed to start raft: %w", err)
		}

		collector := raftlog.NewCollector(facade)
		collector.Start()
		metrics.SetVersion(Version)
		metrics.RegisterComponent("raftlog", true, "opened")
		metrics.RegisterComponent("searchdb", true, "opened")

		metricsAddr := resolveMetricsAddr(cmd, cfg)
		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/health", metrics.HealthHandler())
			mux.Handle("/ready", metrics.ReadyHandler())
			mux.Handle("/live", metrics.LivenessHandler())
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					log.Logger.Error().Err(err).Msg("metrics server exited")
				}
			}()
			fmt.Printf("metrics endpoint: http://%s/metrics\n", metricsAddr)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		collector.Stop()
		if err := raftNode.Shutdown().Error(); err != nil {
			log.Logger.Error().Err(err).Msg("raft shutdown reported an error")
		}
		if err := facade.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().String("node-id", "", "This node's identifier (a random id is generated if omitted)")
	serveCmd.Flags().String("data-dir", "./data", "Directory for the log, metadata, and search engine")
	serveCmd.Flags().String("config", "", "Path to a YAML config file (overrides node-id/data-dir)")
	serveCmd.Flags().String("raft-addr", "127.0.0.1:7000", "Address the Raft transport listens and advertises on")
	serveCmd.Flags().Bool("bootstrap", false, "Form a brand new single-node cluster if this node has no membership yet")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics, /health, /ready, /live on (empty to disable, overridden by config's metrics settings unless set explicitly)")
}
