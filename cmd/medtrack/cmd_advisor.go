package main

import (
	"context"
	"fmt"
	"strings"

	"medtrack/cmd/medtrack/ui"
	"medtrack/internal/articulation"
	"medtrack/internal/export"
	"medtrack/internal/medication"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var exportDir string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Fetch descriptions and rewrite the profile's database",
	Long: `Replaces the stored medications with the same list, each enriched with a
description of the disorders it treats. If any description cannot be fetched
the database is left unchanged.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		records, err := loadRecords(ctx, e, profile)
		if err != nil {
			return err
		}

		var (
			enriched []medication.Record
			failure  error
		)
		if _, err := e.engine.Submit(e.runner, e.catalog, profile, records,
			func(out []medication.Record) { enriched = out },
			func(err error) { failure = err },
		); err != nil {
			return err
		}
		e.runner.Close()
		if err := e.runner.Dispatch(ctx); err != nil {
			return err
		}
		e.runner.Wait()
		if failure != nil {
			return failure
		}

		logger.Info("Reconciled profile", zap.String("profile", profile), zap.Int("records", len(enriched)))
		printRecords(cmd, profile, enriched)
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintln(cmd.OutOrStdout(), articulation.Greeting(medication.Summary(enriched)))
		return nil
	},
}

var contraindicationsCmd = &cobra.Command{
	Use:   "contraindications",
	Short: "Check the profile's medications for contraindications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		records, err := loadRecords(ctx, e, profile)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return fmt.Errorf("%s has no medications; add some first", profile)
		}
		names := medication.Names(records)
		rows, err := runTask(ctx, e, "contraindications", func(ctx context.Context) ([]medication.Contraindication, error) {
			return e.advisor.FetchContraindications(ctx, names)
		})
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.ContraindicationTable(rows).View(ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))))
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info [name]...",
	Short: "Show general information about one or more medications",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		infos, err := runTask(ctx, e, "medication info", func(ctx context.Context) ([]string, error) {
			out := make([]string, len(args))
			g, gctx := errgroup.WithContext(ctx)
			for i, name := range args {
				g.Go(func() error {
					info, err := e.advisor.FetchInfo(gctx, name)
					if err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
					out[i] = info
					return nil
				})
			}
			return out, g.Wait()
		})
		if err != nil {
			return err
		}
		md := ui.NewMarkdown(100, "notty")
		styles := ui.NewStyles(ui.ThemeByName(cfg.UI.Theme))
		for i, name := range args {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styles.RenderDivider(40))
			}
			fmt.Fprintln(cmd.OutOrStdout(), md.Render(fmt.Sprintf("# %s\n\n%s", name, infos[i])))
		}
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Ask one question about the profile's medications",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		records, err := loadRecords(ctx, e, profile)
		if err != nil {
			return err
		}
		summary := medication.Summary(records)
		message := strings.Join(args, " ")
		reply, err := runTask(ctx, e, "chat", func(ctx context.Context) (string, error) {
			return e.advisor.Chat(ctx, summary, message)
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.NewMarkdown(100, "notty").Render(reply))
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the profile's medications as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext(cmd)
		e := newEnv(ctx, cfg)
		dir := exportDir
		if dir == "" {
			dir = cfg.Store.ExportDir()
		}
		path, err := runTask(ctx, e, "export", func(ctx context.Context) (string, error) {
			records, err := loadRecords(ctx, e, profile)
			if err != nil {
				return "", err
			}
			return export.ToFile(dir, profile, records)
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", profile, path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "Output directory (default: exports next to the profile directory)")
}
