package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kilianp07/bikeflow/app"
	"github.com/kilianp07/bikeflow/core/dispatch"
	"github.com/kilianp07/bikeflow/core/dispatch/logging"
	"github.com/kilianp07/bikeflow/core/model"
	"github.com/kilianp07/bikeflow/core/store"
	"github.com/kilianp07/bikeflow/infra/logger"
)

var listStatus string

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Operate the task queue directly against the store",
}

var tasksApproveCmd = &cobra.Command{
	Use:   "approve <suggestion_id>",
	Short: "Promote a suggestion into a ready task",
	Args:  cobra.ExactArgs(1),
	RunE: withQueue(func(ctx context.Context, m *dispatch.Manager, args []string) (any, error) {
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return m.Promote(ctx, id)
	}),
}

var tasksClaimCmd = &cobra.Command{
	Use:   "claim <worker_id>",
	Short: "Assign the oldest ready task to a worker",
	Args:  cobra.ExactArgs(1),
	RunE: withQueue(func(ctx context.Context, m *dispatch.Manager, args []string) (any, error) {
		return m.Claim(ctx, args[0])
	}),
}

var tasksCompleteCmd = &cobra.Command{
	Use:   "complete <task_id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: withQueue(func(ctx context.Context, m *dispatch.Manager, args []string) (any, error) {
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return m.Complete(ctx, id)
	}),
}

var tasksLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	RunE: withQueue(func(ctx context.Context, m *dispatch.Manager, _ []string) (any, error) {
		var f store.TaskFilter
		if listStatus != "" {
			st, err := model.ParseTaskStatus(listStatus)
			if err != nil {
				return nil, err
			}
			f.Status = &st
		}
		return m.List(ctx, f)
	}),
}

func init() {
	tasksLsCmd.Flags().StringVar(&listStatus, "status", "", "ready, assigned or completed")
	tasksCmd.AddCommand(tasksApproveCmd, tasksClaimCmd, tasksCompleteCmd, tasksLsCmd)
	rootCmd.AddCommand(tasksCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// withQueue opens the store and audit log, runs fn and prints its result.
func withQueue(fn func(ctx context.Context, m *dispatch.Manager, args []string) (any, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := app.OpenStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		defer st.Close()
		logStore, err := logging.New(cfg.Dispatch.Log)
		if err != nil {
			return err
		}
		m, err := dispatch.NewManager(st, cfg.Dispatch, logger.New("tasks-command"), dispatch.WithLogStore(logStore))
		if err != nil {
			_ = logStore.Close()
			return err
		}
		defer m.Close()

		out, err := fn(ctx, m, args)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	}
}
