package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vertexflow/coordinator/config"
	"github.com/vertexflow/coordinator/pkg/coordinator"
)

var (
	inspectConfigPath string
	inspectNamespace  string
	inspectGraph      string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print task/executor/change-log statistics for one namespace and graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect()
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectConfigPath, "config", "c", "", "YAML config file overlaying environment defaults")
	inspectCmd.Flags().StringVar(&inspectNamespace, "namespace", "", "namespace to inspect (required)")
	inspectCmd.Flags().StringVar(&inspectGraph, "graph", "", "graph name to inspect (required)")
	inspectCmd.MarkFlagRequired("namespace")
	inspectCmd.MarkFlagRequired("graph")
}

func runInspect() error {
	cfg, err := config.Load(inspectConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	coord, err := coordinator.New(coordinator.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	stats, err := coord.Stats(context.Background(), inspectNamespace, inspectGraph)
	if err != nil {
		return fmt.Errorf("compute stats: %w", err)
	}

	fmt.Printf("namespace:        %s\n", stats.Namespace)
	fmt.Printf("graph:            %s\n", stats.GraphName)
	fmt.Printf("active executors: %d\n", stats.ActiveExecutors)
	fmt.Printf("unassigned tasks: %d\n", stats.UnassignedTasks)
	fmt.Printf("change log lag:   %d\n", stats.ChangeLogLag)
	fmt.Println("tasks by outcome:")
	for outcome, n := range stats.TasksByOutcome {
		fmt.Printf("  %-10s %d\n", outcome, n)
	}
	fmt.Println("tasks by executor:")
	for executorID, n := range stats.TasksByExecutor {
		fmt.Printf("  %-20s %d\n", executorID, n)
	}
	return nil
}
