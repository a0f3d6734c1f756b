package main

import (
	"context"
	clts "cryptodash/clients"
	"cryptodash/clients/predictapi"
	"cryptodash/config"
	"cryptodash/internal/app"
	"cryptodash/internal/market"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// trainTimeout caps a training request, which runs far longer than a fetch.
const trainTimeout = 30 * time.Minute

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cryptodash",
		Short:         "Crypto price, forecast and sentiment dashboard",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCmd(&configPath),
		newWatchCmd(&configPath),
		newTrainCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			logger.Info("starting dashboard",
				zap.Bool("isProd", cfg.IsProd),
				zap.String("backend", cfg.Backend.BaseURL),
				zap.Int("port", cfg.Server.Port),
			)

			ctx, stop := signalContext()
			defer stop()

			clients := clts.NewClients(logger, cfg)
			runner := app.NewRunner(clients, cfg)
			if err := runner.Run(ctx); err != nil {
				logger.Error("runner failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newWatchCmd(configPath *string) *cobra.Command {
	var coin string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the dashboard in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if coin != "" {
				asset, err := market.ParseAsset(coin)
				if err != nil {
					return err
				}
				cfg.Dashboard.DefaultCoin = asset.String()
			}

			// Logs go to stderr so they do not interleave with the redraws
			logCfg := zap.NewDevelopmentConfig()
			logCfg.OutputPaths = []string{"stderr"}
			logCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
			logger, err := logCfg.Build()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signalContext()
			defer stop()

			clients := clts.NewClients(logger, cfg)
			runner := app.NewTerminalRunner(clients, cfg, os.Stdin, os.Stdout)
			return runner.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&coin, "coin", "", "coin to show first (BTC, ETH, SOL, BNB, DOGE)")
	return cmd
}

func newTrainCmd(configPath *string) *cobra.Command {
	var req predictapi.TrainRequest

	cmd := &cobra.Command{
		Use:   "train COIN",
		Short: "Ask the backend to retrain the forecast model for a coin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asset, err := market.ParseAsset(args[0])
			if err != nil {
				return err
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			cfg.Backend.Timeout = trainTimeout

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signalContext()
			defer stop()

			client := predictapi.NewClient(logger, cfg)
			result, err := client.Train(ctx, asset, req)
			if err != nil {
				return fmt.Errorf("train %s: %w", asset, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s\nfinal loss: %.6f\nfinal val loss: %.6f\n",
				result.Message, result.FinalLoss, result.FinalValLoss)
			return nil
		},
	}
	cmd.Flags().IntVar(&req.Epochs, "epochs", 0, "training epochs (backend default when 0)")
	cmd.Flags().IntVar(&req.BatchSize, "batch-size", 0, "training batch size (backend default when 0)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cryptodash %s (%s)\n", app.BuildCommit, app.BuildTime)
		},
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate().Err(); err != nil {
		return nil, fmt.Errorf("invalid config: %s", strings.TrimSpace(err.Error()))
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
	)
}
