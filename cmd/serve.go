package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samgrcn/WhatsApp-AI/internal/bus"
	"github.com/samgrcn/WhatsApp-AI/internal/channels"
	"github.com/samgrcn/WhatsApp-AI/internal/channels/whatsapp"
	"github.com/samgrcn/WhatsApp-AI/internal/coalesce"
	"github.com/samgrcn/WhatsApp-AI/internal/config"
	adminhttp "github.com/samgrcn/WhatsApp-AI/internal/http"
	"github.com/samgrcn/WhatsApp-AI/internal/providers"
	"github.com/samgrcn/WhatsApp-AI/internal/reply"
	"github.com/samgrcn/WhatsApp-AI/internal/store"
	"github.com/samgrcn/WhatsApp-AI/internal/store/pg"
	"github.com/samgrcn/WhatsApp-AI/internal/store/sqlite"
)

func runServe() {
	// Setup structured logging
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey == "" {
		slog.Error("no provider API key configured; set WA_AI_PROVIDER_API_KEY")
		os.Exit(1)
	}
	holder := config.NewHolder(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: SQLite standalone by default, Postgres in managed mode.
	stores, err := openStores(cfg)
	if err != nil {
		slog.Error("failed to open store", "mode", cfg.Database.Mode, "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	// Provider registry
	providerRegistry := providers.NewRegistry()
	registerProviders(providerRegistry, cfg)
	provider, err := providerRegistry.Get(cfg.Provider.Name)
	if err != nil {
		slog.Error("unknown provider", "name", cfg.Provider.Name, "error", err)
		os.Exit(1)
	}

	generator := reply.NewGenerator(provider, stores.Messages, stores.Prompt, holder)

	msgBus := bus.New()

	// Channels
	channelMgr := channels.NewManager(msgBus)
	waChannel, err := whatsapp.New(cfg.Channels.WhatsApp, msgBus)
	if err != nil {
		slog.Error("whatsapp channel unavailable", "error", err)
		os.Exit(1)
	}
	channelMgr.Register(waChannel)

	// Coalescing dispatcher: merges rapid-fire messages per conversation and
	// paces replies with randomized human-like delays.
	dispatcher := coalesce.NewDispatcher(generator, &outboundSender{bus: msgBus}, coalesce.DispatcherOpts{
		Classifier: coalesce.Classifier{Window: time.Duration(cfg.Reply.RelatedWindowMs) * time.Millisecond},
		Grace:      coalesce.Policy{Min: time.Duration(cfg.Reply.GraceMs) * time.Millisecond, Max: time.Duration(cfg.Reply.GraceMs) * time.Millisecond},
		HumanDelay: coalesce.Policy{Min: cfg.Reply.HumanDelay.Min(), Max: cfg.Reply.HumanDelay.Max()},
		BatchDelay: coalesce.Policy{Min: cfg.Reply.BatchDelay.Min(), Max: cfg.Reply.BatchDelay.Max()},
		Recorder:   &replyRecorder{messages: stores.Messages},
	})

	// Admin dashboard + API
	adminServer := adminhttp.NewServer(adminhttp.ServerConfig{
		Host:         cfg.Admin.Host,
		Port:         cfg.Admin.Port,
		Username:     cfg.Admin.Username,
		Password:     cfg.Admin.Password,
		RateLimitRPM: cfg.Admin.RateLimitRPM,
		DefaultPrompt: func() string {
			return holder.Current().DefaultSystemPrompt
		},
	}, stores)

	if err := channelMgr.StartAll(ctx); err != nil {
		slog.Error("failed to start channels", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return adminServer.Start(gctx)
	})
	g.Go(func() error {
		channelMgr.DispatchOutbound(gctx)
		return nil
	})
	g.Go(func() error {
		consumeInboundMessages(gctx, msgBus, dispatcher, stores.Messages)
		return nil
	})
	g.Go(func() error {
		// Config hot reload; delay tuning and prompt default pick up the
		// new values on the next dispatch cycle.
		if err := config.Watch(gctx, cfgPath, holder); err != nil {
			slog.Warn("config watcher stopped", "error", err)
		}
		return nil
	})

	slog.Info("whatsapp-ai running", "version", Version, "db_mode", cfg.Database.Mode)

	if err := g.Wait(); err != nil {
		slog.Error("serve failed", "error", err)
	}

	channelMgr.StopAll(context.Background())
	dispatcher.Wait()
	slog.Info("shutdown complete")
}

func openStores(cfg *config.Config) (*store.Stores, error) {
	if cfg.IsManagedMode() {
		return pg.NewStores(cfg.Database.PostgresDSN)
	}
	return sqlite.NewStores(cfg.Database.SQLitePath)
}

// registerProviders wires the configured completion backends.
func registerProviders(reg *providers.Registry, cfg *config.Config) {
	switch cfg.Provider.Name {
	case "openai":
		reg.Register(providers.NewOpenAIProvider("openai", cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model))
	default:
		p := providers.NewDeepSeekProvider(cfg.Provider.APIKey, cfg.Provider.Model)
		if cfg.Provider.APIBase != "" {
			p = providers.NewOpenAIProvider("deepseek", cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)
		}
		reg.Register(p)
	}
}
