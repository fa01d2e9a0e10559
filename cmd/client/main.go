package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"txmesh/pkg/admin"
	"txmesh/pkg/client"
	"txmesh/pkg/cluster"
	"txmesh/pkg/common"
	"txmesh/pkg/engine"
	"txmesh/pkg/txn"
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
	)

	root := &cobra.Command{
		Use:           "txmesh",
		Short:         "txmesh client and admin tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "cluster config file (YAML)")
	root.PersistentFlags().IntVar(&replicaCount, "replica-count", 3, "replica count when no config file is given")

	loadConfig := func() (common.Config, error) {
		if configPath != "" {
			return common.LoadConfig(configPath)
		}
		return common.DefaultConfig(replicaCount), nil
	}
	log := zerolog.New(os.Stderr).Level(zerolog.WarnLevel).With().Timestamp().Logger()

	newExecutor := func(cfg common.Config) *txn.Executor {
		coord := client.NewCoordinatorClient(cfg.CoordinatorAddr, log)
		backend := cluster.NewBackend(coord, log)
		return txn.NewExecutor(engine.NewAdapter(backend, log), log)
	}

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "run a few transactions against the cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			exec := newExecutor(cfg)
			ctx := context.Background()

			value, err := exec.RunDurableOrFail(ctx, func(tx engine.Tx) (any, error) {
				if err := tx.Put("accounts/alice", "100"); err != nil {
					return nil, err
				}
				if err := tx.Put("accounts/bob", "50"); err != nil {
					return nil, err
				}
				return tx.Get("accounts/alice")
			}, engine.Unbounded)
			if err != nil {
				return err
			}
			fmt.Println("committed, alice =", value)

			outcome := exec.RunAsync(ctx, func(tx engine.Tx) (any, error) {
				if _, err := tx.Get("accounts/alice"); err == nil {
					txn.Abort(tx.Context(), "duplicate_key")
				}
				return tx.Get("accounts/bob")
			}, engine.Limit(3))
			fmt.Println("second transaction outcome:", outcome.Kind)
			if outcome.Kind == txn.OutcomeAborted {
				fmt.Println("abort reason:", outcome.Reason)
			}
			return nil
		},
	}

	infoCmd := &cobra.Command{
		Use:   "info [table]",
		Short: "print per-node schema info",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			table := ""
			if len(args) == 1 {
				table = args[0]
			}
			return admin.New(cfg.Replicas, log).PrintSchemaInfo(os.Stdout, table)
		},
	}

	createSchemaCmd := &cobra.Command{
		Use:   "create-schema [node...]",
		Short: "initialize schema directories on nodes (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return admin.New(cfg.Replicas, log).CreateSchema(args)
		},
	}

	deleteSchemaCmd := &cobra.Command{
		Use:   "delete-schema [node...]",
		Short: "wipe schema directories on nodes (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return admin.New(cfg.Replicas, log).DeleteSchema(args)
		},
	}

	setModeCmd := &cobra.Command{
		Use:   "set-mode <node> <ram|disc>",
		Short: "switch a node's committed store between ram and disc",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			mode, ok := common.ParseStorageMode(args[1])
			if !ok {
				return fmt.Errorf("unknown storage mode %q", args[1])
			}
			return admin.New(cfg.Replicas, log).SetStorageMode(args[0], mode)
		},
	}

	root.AddCommand(demoCmd, infoCmd, createSchemaCmd, deleteSchemaCmd, setModeCmd)
	return root
}
