package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"inspiro/internal/config"
	"inspiro/internal/logging"
	"inspiro/internal/theme"
)

var (
	cfgPath string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "inspiro",
	Short: "Caption analysis, rewriting and scheduled Facebook posting",
	Long: `inspiro classifies social-media captions for authenticity, emotion and
predicted reach, suggests rewrites and hashtags, finds the best hour to post
and publishes scheduled captions to a Facebook Page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "init" {
			return nil
		}
		return loadConfig()
	},
	Run: func(cmd *cobra.Command, args []string) {
		theme.PrintBanner(cmd.OutOrStdout())
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "./inspiro.yaml", "config path")
}

// loadConfig reads the env file and the YAML config. A missing config file
// means defaults plus environment.
func loadConfig() error {
	if err := config.LoadEnvFile(); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	c, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		c = config.Default()
		c.ResolveEnv()
	} else if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	cfg = c
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
