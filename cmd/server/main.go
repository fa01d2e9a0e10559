package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"txmesh/pkg/client"
	"txmesh/pkg/common"
	"txmesh/pkg/coordinator"
	"txmesh/pkg/replica"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath   string
		replicaCount int
		logLevel     string
	)

	root := &cobra.Command{
		Use:           "txmesh-server",
		Short:         "txmesh cluster node: transaction coordinator or replica",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "cluster config file (YAML)")
	root.PersistentFlags().IntVar(&replicaCount, "replica-count", 3, "replica count when no config file is given")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level")

	loadConfig := func() (common.Config, error) {
		if configPath != "" {
			return common.LoadConfig(configPath)
		}
		return common.DefaultConfig(replicaCount), nil
	}
	newLogger := func() zerolog.Logger {
		level, err := zerolog.ParseLevel(logLevel)
		if err != nil {
			level = zerolog.InfoLevel
		}
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	}

	coordCmd := &cobra.Command{
		Use:   "coordinator",
		Short: "run the transaction coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := newLogger()

			conns := make([]coordinator.ReplicaConn, len(cfg.Replicas))
			for i, addr := range cfg.Replicas {
				conns[i] = client.NewReplicaClient(addr, log)
			}

			reg := prometheus.NewRegistry()
			coord, err := coordinator.New(conns,
				filepath.Join(cfg.LogDir, "coordinator.log"),
				coordinator.NewMetrics(reg), log)
			if err != nil {
				return err
			}
			defer coord.Close()
			return coord.Serve(cfg.CoordinatorAddr, cfg.MetricsAddr, reg)
		},
	}

	var index int
	replicaCmd := &cobra.Command{
		Use:   "replica",
		Short: "run one replica",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if index < 0 || index >= len(cfg.Replicas) {
				return fmt.Errorf("replica index %d out of range (%d replicas)", index, len(cfg.Replicas))
			}
			log := newLogger()

			mode, _ := common.ParseStorageMode(cfg.StorageMode)
			coord := client.NewCoordinatorClient(cfg.CoordinatorAddr, log)
			rep, err := replica.New(
				fmt.Sprintf("replica%d", index),
				filepath.Join(cfg.DataDir, fmt.Sprintf("replica%d", index)),
				mode, coord.Status, log)
			if err != nil {
				return err
			}
			defer rep.Close()
			return rep.Serve(cfg.Replicas[index])
		},
	}
	replicaCmd.Flags().IntVar(&index, "index", 0, "replica index, starting at 0")

	root.AddCommand(coordCmd, replicaCmd)
	return root
}
