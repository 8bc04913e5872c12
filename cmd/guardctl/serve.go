package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kirillm/action-guard/internal/adapters"
	"github.com/kirillm/action-guard/internal/api"
	"github.com/kirillm/action-guard/internal/approval"
	"github.com/kirillm/action-guard/internal/clock"
	"github.com/kirillm/action-guard/internal/config"
	"github.com/kirillm/action-guard/internal/domain"
	"github.com/kirillm/action-guard/internal/exchange"
	"github.com/kirillm/action-guard/internal/execution"
	"github.com/kirillm/action-guard/internal/notify"
	"github.com/kirillm/action-guard/internal/orchestrator"
	"github.com/kirillm/action-guard/internal/policy"
	"github.com/kirillm/action-guard/internal/risk"
	"github.com/kirillm/action-guard/internal/rollback"
	"github.com/kirillm/action-guard/internal/storage"
	"github.com/kirillm/action-guard/internal/strategy"
	"github.com/kirillm/action-guard/internal/telegram"
	"github.com/kirillm/action-guard/internal/tracing"
	"github.com/kirillm/action-guard/pkg/utils"
)

const eventBuffer = 256

func serveCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the guard service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFiles(envFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if p := viper.GetString("policy"); p != "" {
				cfg.Policy.File = p
			}
			if p := viper.GetString("profile"); p != "" {
				cfg.Policy.Profile = p
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file with service settings")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := utils.NewLogger(cfg.LogLevel)
	utils.SetDefault(logger)

	logger.Info("🚀 Starting action guard %s...", version)

	if cfg.TraceFile != "" {
		if err := tracing.Init("action-guard", version, cfg.TraceFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(shutdownCtx); err != nil {
				logger.Error("Failed to flush traces: %v", err)
			}
		}()
	}

	pol, err := policy.LoadOrDefault(cfg.Policy.File, cfg.Policy.Profile)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	store := policy.NewStore(pol)
	clk := clock.Real

	bus := approval.NewBus(approval.Hooks{
		OnDrop: func(ev approval.Event) {
			logger.Warn("Approval event dropped: %s", ev.Type)
		},
		OnPanic: func(ev approval.Event, r interface{}) {
			logger.Error("Approval listener panicked on %s: %v", ev.Type, r)
		},
	})
	queue := approval.NewQueue(approval.ConfigFromPolicy(pol.Queue),
		approval.WithClock(clk),
		approval.WithBus(bus),
		approval.WithLogger(logger),
	)

	rb := rollback.NewManager(rollback.ConfigFromPolicy(pol.Rollback), clk, nil, logger)
	snapshots := rollback.NewFileSnapshots(nil, logger)
	snapshots.Register(rb, adapters.TypeApplyPatch)
	snapshots.Register(rb, adapters.TypeContentDraft)

	ks := execution.NewKillSwitch(clk, logger)
	executor := execution.NewExecutor(ks, clk, logger)

	dispatcher := notify.NewDispatcher(notify.ConfigFromPolicy(pol.Notify), clk, logger)
	lang := notify.Lang(cfg.Guard.Language)

	var botAPI *tgbotapi.BotAPI
	if cfg.Telegram.Enabled() {
		botAPI, err = tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
		if err != nil {
			return fmt.Errorf("failed to create Telegram bot: %w", err)
		}
		logger.Info("✅ Telegram bot authorized as @%s", botAPI.Self.UserName)
		dispatcher.AddChannel(notify.NewTelegramChannel(domain.ChannelTelegram, botAPI, cfg.Telegram.ChatID, notify.NewFormatter(lang)), true)
	}
	if cfg.Webhook.Enabled() {
		client := &http.Client{Timeout: cfg.Webhook.Timeout}
		dispatcher.AddChannel(notify.NewWebhookChannel(domain.ChannelWebhook, cfg.Webhook.URL, cfg.Webhook.Secret, client), true)
		logger.Info("✅ Webhook channel enabled")
	}

	var audit domain.DecisionRepository
	if cfg.Database.Enabled() {
		st, err := storage.NewPostgresStorage(ctx, cfg.Database.URL, storage.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer st.Close()
		audit = st.Decisions()

		recorder := storage.NewEventRecorder(bus, st.ApprovalEvents(), eventBuffer, logger)
		defer recorder.Close()
		logger.Info("✅ Database connected")
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Mode:          orchestrator.Mode(cfg.Guard.Mode),
		PilotMaxValue: cfg.Guard.PilotMaxValue,
		SweepInterval: pol.Queue.SweepInterval,
		SummaryHour:   cfg.Guard.SummaryHour,
		Location:      cfg.Guard.Location,
	}, orchestrator.Deps{
		Classifier: risk.NewClassifier(store, clk),
		Queue:      queue,
		Rollback:   rb,
		Executor:   executor,
		Audit:      audit,
		Summaries:  dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	subscriber := notify.Attach(bus, dispatcher, queue, eventBuffer, logger)
	defer subscriber.Close()

	factory := domain.NewActionFactory(nil, clk)

	var engines []interface{ Stop() }
	defer func() {
		for _, e := range engines {
			e.Stop()
		}
	}()

	if cfg.Bybit.Enabled() {
		client := exchange.NewBybitClient(cfg.Bybit.APIKey, cfg.Bybit.APISecret, cfg.Bybit.BaseURL, clk)
		trading := execution.NewTradingHandlers(client, cfg.Bybit.SlippagePercent, clk, logger)
		trading.Register(executor)
		logger.Info("✅ Bybit trading handlers registered")

		if cfg.Strategy.Enabled() {
			adapter := adapters.NewTradingAdapter(factory)
			position := &strategy.Position{}

			dca := strategy.NewDCAStrategy(orch, adapter, position, logger,
				cfg.Strategy.TradingSymbol, cfg.Strategy.DCAAmount, cfg.Strategy.DCAInterval)
			dca.Register(executor, trading.Buy, rb)
			if err := dca.Start(ctx); err != nil {
				return fmt.Errorf("failed to start DCA strategy: %w", err)
			}
			engines = append(engines, dca)

			if cfg.Strategy.AutoSellEnabled {
				as := strategy.NewAutoSellStrategy(orch, adapter, trading.Prices(), position, logger,
					cfg.Strategy.TradingSymbol, cfg.Strategy.AutoSellTriggerPercent,
					cfg.Strategy.AutoSellAmountPercent, cfg.Strategy.PriceCheckInterval)
				as.Register(executor, trading.Sell)
				if err := as.Start(ctx); err != nil {
					return fmt.Errorf("failed to start auto-sell strategy: %w", err)
				}
				engines = append(engines, as)
			}
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Policy.Watch && cfg.Policy.File != "" {
		watcher, err := policy.NewWatcher(cfg.Policy.File, cfg.Policy.Profile, store, logger)
		if err != nil {
			return fmt.Errorf("failed to watch policy: %w", err)
		}
		watcher.OnReload(func(p *policy.Policy) {
			orch.ApplyPolicy(p)
			dispatcher.SetConfig(notify.ConfigFromPolicy(p.Notify))
		})
		g.Go(func() error {
			watcher.Run(gctx)
			return nil
		})
	}

	if botAPI != nil {
		auth := telegram.NewAuthManager(cfg.Telegram.AdminIDs, cfg.Telegram.Whitelist, clk)
		tf := telegram.NewFormatter(lang)
		router := telegram.NewRouter(auth, tf)
		telegram.NewHandlers(orch, ks, rb, tf, clk).Register(router)
		bot := telegram.NewBot(botAPI, cfg.Telegram.ChatID, router, auth, tf, logger)
		g.Go(func() error {
			bot.Start(gctx)
			return nil
		})
	}

	if cfg.API.Addr != "" {
		srv := api.NewServer(orch, ks, factory, cfg.API.Addr, cfg.API.Token, clk, logger)
		g.Go(func() error {
			return srv.Start(gctx)
		})
	}

	if err := orch.Start(gctx); err != nil {
		return err
	}
	defer orch.Stop()

	logger.Info("✅ Guard running in %s mode", orch.GetMode())

	<-gctx.Done()
	logger.Info("🛑 Shutting down...")

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("👋 Guard stopped")
	return nil
}
