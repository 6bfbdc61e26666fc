package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/roadrunner-plugins/inbound"
	"github.com/roadrunner-plugins/inbound/addressing"
)

type options struct {
	configPath string
	logLevel   string
}

// fileConfig is the CLI configuration file; it mirrors the plugin section.
type fileConfig struct {
	Inbound inbound.Config `yaml:"inbound"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "inbound",
		Short:         "Dispatch inbound email and mint signed reply addresses",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "inbound.yaml", "path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newDispatchCmd(opts),
		newAddressCmd(opts),
		newResolveCmd(opts),
	)
	return rootCmd
}

func loadConfig(path string) (*inbound.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := &fc.Inbound
	if err := cfg.InitDefault(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

// setup loads configuration, the logger and the signer shared by subcommands.
func setup(opts *options) (*inbound.Config, *zap.Logger, *addressing.Signer, error) {
	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger(opts.logLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	signer, err := addressing.NewSigner(cfg.Keys(), cfg.Algorithms())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log.Named("inbound"), signer, nil
}
