package main

import (
	"context"
	"fmt"
	"strconv"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/medication"
	"medtrack/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	medStrength  string
	medFrequency string
)

var medsCmd = &cobra.Command{
	Use:   "meds",
	Short: "List, add and remove a profile's medications",
}

var medsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the profile's medications with their database IDs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		rows, err := runTask(ctx, e, "list "+profile, func(ctx context.Context) ([]store.Row, error) {
			s, err := e.catalog.OpenExisting(profile)
			if err != nil {
				return nil, err
			}
			defer s.Close()
			return s.LoadRows(ctx)
		})
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: no medications\n", profile)
			return nil
		}
		t := ui.NewSimpleTable(profile, []string{"ID", "Name", "Strength", "Dosage Frequency", "Description"})
		for _, r := range rows {
			t.AddRow(strconv.FormatInt(r.ID, 10), r.Name, r.Strength, r.Frequency, r.Description)
		}
		fmt.Fprint(cmd.OutOrStdout(), t.View(ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))))
		return nil
	},
}

var medsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a medication to the profile's database",
	Long: `Adds one row without a description. Run "medtrack reconcile" afterwards
to fetch descriptions for every medication.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := medication.Record{Name: args[0], Strength: medStrength, Frequency: medFrequency}
		if err := r.Validate(); err != nil {
			return err
		}
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		id, err := runTask(ctx, e, "add "+r.Name, func(ctx context.Context) (int64, error) {
			s, err := e.catalog.OpenExisting(profile)
			if err != nil {
				return 0, err
			}
			defer s.Close()
			return s.Insert(ctx, r)
		})
		if err != nil {
			return err
		}
		logger.Info("Added medication", zap.String("profile", profile), zap.String("name", r.Name), zap.Int64("id", id))
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s to %s (id %d)\n", r.Label(), profile, id)
		return nil
	},
}

var medsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a medication by its database ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		removed, err := runTask(ctx, e, "remove "+args[0], func(ctx context.Context) (bool, error) {
			s, err := e.catalog.OpenExisting(profile)
			if err != nil {
				return false, err
			}
			defer s.Close()
			return s.Delete(ctx, id)
		})
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no medication with id %d in %s", id, profile)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed medication %d from %s\n", id, profile)
		return nil
	},
}

func init() {
	medsAddCmd.Flags().StringVar(&medStrength, "strength", "", "Strength, e.g. 81mg")
	medsAddCmd.Flags().StringVar(&medFrequency, "frequency", "", "Dosage frequency, e.g. Once daily")

	medsCmd.AddCommand(medsListCmd)
	medsCmd.AddCommand(medsAddCmd)
	medsCmd.AddCommand(medsRemoveCmd)
}
