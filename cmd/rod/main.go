// Command rod works with RODHyPix detector images: inspect headers,
// decode files, batch-convert directories, generate synthetic data,
// and serve a live preview of an acquisition stream.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielnrainer/rodhypix-go/internal/config"
	"github.com/danielnrainer/rodhypix-go/internal/logging"
)

var (
	cfgPath  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rod",
		Short: "Tools for RODHyPix detector images",
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to rod.yaml config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newInfoCmd(),
		newDecodeCmd(),
		newBatchCmd(),
		newGenCmd(),
		newFrameLogCmd(),
		newServeCmd(),
		newWatchCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func loadConfig() *config.Config {
	if cfgPath == "" {
		return config.Default()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func newLogger(cfg *config.Config) *zap.SugaredLogger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(level)
	if err != nil {
		fatal(err)
	}
	return log
}
