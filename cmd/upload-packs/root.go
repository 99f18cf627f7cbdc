package main

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "UPLOAD_PACKS"

var (
	cfgFile  string
	verbose  bool
	jsonLogs bool

	v = viper.New()

	rootCmd = &cobra.Command{
		Use:           "upload-packs",
		Short:         "Publish marketplace packs and the marketplace index",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}
)

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "log JSON lines instead of console output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
}

// initConfig binds the flags of the running command, the environment and
// the optional config file into v. Flags win over env, env over the file.
func initConfig(cmd *cobra.Command) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}
	return nil
}

func newLogger() (logr.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if jsonLogs {
		zcfg = zap.NewProductionConfig()
	}
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	zapLog, err := zcfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to create logger: %w", err)
	}
	return zapr.NewLogger(zapLog), nil
}
