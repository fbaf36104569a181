package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/crowdledger/internal/chain"
	"github.com/blues/crowdledger/internal/config"
	"github.com/blues/crowdledger/internal/crowdfund"
	"github.com/blues/crowdledger/internal/logger"
	"github.com/blues/crowdledger/internal/logic"
	"github.com/blues/crowdledger/internal/repository"
	"github.com/blues/crowdledger/internal/router"
	"github.com/blues/crowdledger/internal/task"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "crowdledger",
		Short:         "Crowdfunding ledger service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: config.yaml in ., ./config, /etc/crowdledger)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server and background tasks",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), configPath)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update database tables",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(configPath)
			},
		},
	)
	return root
}

func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.Log); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrate(configPath string) error {
	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if _, err := repository.Init(cfg.Database); err != nil {
		return err
	}
	logger.Info("Database migrated (%s)", cfg.Database.Driver)
	return nil
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := setup(configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		return err
	}
	codec, err := chain.NewCodec()
	if err != nil {
		return err
	}
	store := repository.NewStore(db, codec)

	// 重建注册表
	rewards, err := crowdfund.NewRewardIssuer(cfg.Reward.Rate, cfg.Reward.Symbol)
	if err != nil {
		return err
	}
	registry := crowdfund.NewRegistry(common.HexToAddress(cfg.Registry.FactoryAddress), rewards, crowdfund.NewTreasury())
	journal, err := logic.Restore(ctx, store, registry)
	if err != nil {
		return err
	}
	campaignLogic := logic.NewCampaignLogic(registry, codec, journal, store, time.Now)

	// 启动定时任务
	interval := time.Duration(cfg.Task.Interval) * time.Second
	tasks, err := task.NewManager(
		task.NewSnapshotFlushJob(campaignLogic, interval, cfg.Task.Workers),
		task.NewCampaignStateSyncJob(store, interval, time.Now),
	)
	if err != nil {
		return err
	}
	if err := tasks.Start(); err != nil {
		return err
	}
	defer tasks.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router.Setup(campaignLogic, cfg.Server.Mode),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		flushPending(shutdownCtx, campaignLogic)
		logger.Info("Server stopped")
		return nil
	})
	return g.Wait()
}

// flushPending 退出前最后一次写入待刷新的快照
func flushPending(ctx context.Context, campaignLogic *logic.CampaignLogic) {
	for _, address := range campaignLogic.DirtyCampaigns() {
		if err := campaignLogic.Flush(ctx, address); err != nil {
			logger.Error("Snapshot still pending at shutdown: %v", err)
		}
	}
}
