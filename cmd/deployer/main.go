package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/compose-network/factory-deployer/configs"
	"github.com/compose-network/factory-deployer/internal/chains"
	"github.com/compose-network/factory-deployer/internal/deploy"
	"github.com/compose-network/factory-deployer/internal/devnet"
	"github.com/compose-network/factory-deployer/internal/logger"
)

const (
	appName   = "deployer"
	envPrefix = "DEPLOYER"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          appName,
	Short:        "Deterministic multichain deployer for published contract templates",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo, logger.FormatText)

		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return errors.Join(err, errors.New("error reading .env file"))
		}

		v := viper.GetViper()
		if err := configs.ReadDefaults(v); err != nil {
			return err
		}

		if err := mergeConfigFile(v); err != nil {
			return err
		}

		if err := bindEnv(v); err != nil {
			return err
		}

		if err := deploy.BindFlags(cmd, v); err != nil {
			return err
		}

		if err := v.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		logger.Initialize(logger.ParseLevel(configs.Values.Log.Level), configs.Values.Log.Format)

		redacted := configs.Values
		redacted.Credentials = configs.Credentials{}
		slog.With("config", redacted).Debug("configuration loaded")

		return nil
	},
}

func mergeConfigFile(v *viper.Viper) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if execPath, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(execPath))
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// The embedded defaults are already loaded, a missing config file is fine.
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configFile == "" {
			slog.Debug("no config file found, will rely on defaults, env and flags")
			return nil
		}
		const errMsg = "error reading config file"
		slog.With("err", err.Error()).Error(errMsg)
		return errors.Join(err, errors.New(errMsg))
	}

	slog.With("config_file", v.ConfigFileUsed()).Debug("config file loaded")

	return nil
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	return errors.Join(
		v.BindEnv("credentials.private-key", "WALLET_PRIVATE_KEY"),
		v.BindEnv("credentials.secret-key", "THIRDWEB_SECRET_KEY", "RPC_SECRET_KEY"),
	)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default: config.yaml in the executable dir, . or ./configs)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text or json")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		panic(err)
	}
	if err := viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format")); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(deploy.CMD)
	rootCmd.AddCommand(deploy.PredictCMD)
	rootCmd.AddCommand(chains.CMD)
	rootCmd.AddCommand(devnet.CMD)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		stop()
		os.Exit(1)
	}
}
