// Package cli implements chatbotctl, the operator tool for seeding
// knowledge, sweeping sessions and reviewing unanswered questions.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amitsahu0611/chatbot-sub001/internal/storage"
	"github.com/amitsahu0611/chatbot-sub001/pkg/config"
	"github.com/amitsahu0611/chatbot-sub001/pkg/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "chatbotctl",
	Short: "Operator tool for the support chat service",
	Long: `chatbotctl works directly against the chat service storage. It seeds
knowledge entries from YAML, deactivates expired visitor sessions and lists
the questions the widget could not answer.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default searches ./config.yaml, ./config, /etc/chatbot)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := logger.Init(level, "console", "stderr"); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore() (*config.Config, storage.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}
	return cfg, store, nil
}
