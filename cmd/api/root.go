package main

import (
	"os"

	"github.com/akolanti/JournalRAG/internal/config"
	"github.com/akolanti/JournalRAG/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	configPath string
	settings   *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "journalrag",
	Short: "Retrieval over research-paper chunks",
	Long: `journalrag stores embedded chunks of research papers, answers similarity
searches with optional cited answers and tracks how often every chunk is retrieved.

Configuration comes from an optional YAML file, then .env, then the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		s, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings = s
		// stdout belongs to the command's output everywhere except serve
		if cmd.Name() == serveCmd.Name() {
			logger_i.Init(s.SlogLevel())
		} else {
			logger_i.InitWithWriter(os.Stderr, s.SlogLevel())
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "journalrag.yaml", "path to the YAML config file")
}
