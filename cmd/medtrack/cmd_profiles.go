package main

import (
	"context"
	"fmt"
	"strconv"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/medication"
	"medtrack/internal/task"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runTask submits one unit of work and drives the runner on this goroutine
// until its completion has been delivered.
func runTask[T any](ctx context.Context, e *env, name string, work func(ctx context.Context) (T, error)) (T, error) {
	var (
		out     T
		failure error
	)
	if _, err := task.Go(e.runner, name, work,
		func(v T) { out = v },
		func(err error) { failure = err },
	); err != nil {
		return out, err
	}
	e.runner.Close()
	if err := e.runner.Dispatch(ctx); err != nil {
		return out, err
	}
	e.runner.Wait()
	return out, failure
}

// loadRecords reads the profile's records on a fresh handle.
func loadRecords(ctx context.Context, e *env, name string) ([]medication.Record, error) {
	s, err := e.catalog.OpenExisting(name)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Load(ctx)
}

func printRecords(cmd *cobra.Command, title string, records []medication.Record) {
	if len(records) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: no medications\n", title)
		return
	}
	t := ui.NewSimpleTable(title, []string{"ID", "Name", "Strength", "Dosage Frequency", "Description"})
	for i, r := range records {
		t.AddRow(strconv.Itoa(i+1), r.Name, r.Strength, r.Frequency, r.Description)
	}
	fmt.Fprint(cmd.OutOrStdout(), t.View(ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))))
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles and how many medications each holds",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		names, err := e.catalog.List()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No profiles")
			return nil
		}

		counts := make([]int, len(names))
		g, gctx := errgroup.WithContext(ctx)
		for i, name := range names {
			g.Go(func() error {
				records, err := loadRecords(gctx, e, name)
				if err != nil {
					return err
				}
				counts[i] = len(records)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		t := ui.NewSimpleTable("Profiles", []string{"Profile", "Medications"})
		for i, name := range names {
			t.AddRow(name, strconv.Itoa(counts[i]))
		}
		fmt.Fprint(cmd.OutOrStdout(), t.View(ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))))
		return nil
	},
}

var profilesAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create an empty profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cmdContext(cmd), cfg)
		if err := e.catalog.Create(args[0]); err != nil {
			return err
		}
		logger.Info("Created profile", zap.String("name", args[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "Created profile %s\n", args[0])
		return nil
	},
}

var profilesRenameCmd = &cobra.Command{
	Use:   "rename [old] [new]",
	Short: "Rename a profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := newEnv(cmdContext(cmd), cfg)
		if err := e.catalog.Rename(args[0], args[1]); err != nil {
			return err
		}
		logger.Info("Renamed profile", zap.String("from", args[0]), zap.String("to", args[1]))
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesAddCmd)
	profilesCmd.AddCommand(profilesRenameCmd)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
