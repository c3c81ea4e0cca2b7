// Package cmd provides the command-line interface for busim.
package cmd

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/busim/config"
)

var (
	configFile string
	logLevel   string
	envFiles   []string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "busim",
	Short: "busim simulates devices sharing an address space over a bus.",
	Long: `busim simulates devices sharing an address space over a bus. ` +
		`Memories are described in a TOML file, mapped onto a bus and ` +
		`advanced by a three-phase clock.`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return config.LoadDotEnv(envFiles...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"system description in TOML; the built-in single RAM is used if empty")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil,
		".env files to load before reading the environment")
}

// loadConfig reads the config file named by --config, applies the
// environment and the flags, and validates the result.
func loadConfig() (config.Config, error) {
	cfg := config.Defaults()

	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return config.Config{}, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func newLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if level == "" {
		return logger, nil
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	logger.SetLevel(lvl)

	return logger, nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		logrus.WithError(err).Error("busim failed")
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
