package main

import (
	"fmt"

	"medtrack/internal/config"
	"medtrack/internal/perception"

	"github.com/spf13/cobra"
)

var keyProvider string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration",
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [api-key]",
	Short: "Store the language model API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved, err := config.Load(configPath)
		if err != nil {
			return err
		}
		saved.LLM.APIKey = args[0]
		if keyProvider != "" {
			saved.LLM.Provider = keyProvider
		}
		if _, err := perception.NewClientFromConfig(cmdContext(cmd), saved); err != nil {
			return err
		}
		if err := saved.Save(configPath); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s key %s to %s\n", saved.LLM.Provider, saved.LLM.MaskedKey(), configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "config file:     %s\n", configPath)
		fmt.Fprintf(out, "provider:        %s\n", cfg.LLM.Provider)
		fmt.Fprintf(out, "model:           %s\n", cfg.LLM.Model)
		fmt.Fprintf(out, "api key:         %s\n", orNone(cfg.LLM.MaskedKey()))
		fmt.Fprintf(out, "timeout:         %s\n", cfg.GetLLMTimeout())
		fmt.Fprintf(out, "profile dir:     %s\n", cfg.Store.ProfileDir)
		fmt.Fprintf(out, "driver:          %s\n", cfg.Store.Driver)
		fmt.Fprintf(out, "export dir:      %s\n", cfg.Store.ExportDir())
		fmt.Fprintf(out, "max concurrent:  %d\n", cfg.Tasks.MaxConcurrent)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(out, "\nwarning: %v\n", err)
		}
		return nil
	},
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func init() {
	configSetKeyCmd.Flags().StringVar(&keyProvider, "provider", "", "LLM provider (openai, gemini)")

	configCmd.AddCommand(configSetKeyCmd)
	configCmd.AddCommand(configShowCmd)
}
