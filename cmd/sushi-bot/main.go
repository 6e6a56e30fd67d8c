package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/park285/Sushi-Neko-bot/internal/bot"
	appcfg "github.com/park285/Sushi-Neko-bot/internal/config"
	"github.com/park285/Sushi-Neko-bot/internal/history"
	"github.com/park285/Sushi-Neko-bot/internal/httpapi"
	"github.com/park285/Sushi-Neko-bot/internal/iris"
	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/match"
	"github.com/park285/Sushi-Neko-bot/internal/msgcat"
	"github.com/park285/Sushi-Neko-bot/internal/obslog"
	"github.com/park285/Sushi-Neko-bot/internal/profile"
	"github.com/park285/Sushi-Neko-bot/internal/render"
	"github.com/park285/Sushi-Neko-bot/internal/session"
	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	headers := iris.HeaderProvider(cfg.Headers)
	client := iris.NewClient(cfg.IrisBaseURL, iris.WithHeaderProvider(headers))
	ws := iris.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(headers)
	ws.SetLogger(logger)
	ws.OnStateChange(func(state iris.WebSocketState) {
		logger.Info("iris_ws_state", zap.String("state", state.String()))
	})
	egress := iris.NewEgress(cfg.IrisEgress, false, client, ws, logger)

	// Leaderboard (Redis). Without it games run but nothing is ranked.
	var board *leaderboard.Store
	if cfg.RedisURL != "" {
		dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		board, err = leaderboard.Dial(dctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.Fatal("leaderboard_init_failed", zap.Error(err))
		}
		defer func() { _ = board.Close() }()
	} else {
		logger.Warn("leaderboard_disabled", zap.String("reason", "REDIS_URL not set"))
	}

	// Run history: Postgres when configured, memory otherwise.
	var runs history.Repository
	if cfg.DatabaseURL != "" {
		runs, err = history.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("history_init_failed", zap.Error(err))
		}
	} else {
		runs = history.NewMemoryRepository()
	}
	defer func() { _ = runs.Close() }()

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		logger.Fatal("messages_init_failed", zap.Error(err))
	}

	avatars := profile.NewAvatarCache(nil)
	presenter := bot.NewPresenter(egress)
	deps := session.Deps{
		Output:   presenter,
		Avatars:  avatars,
		History:  runs,
		Renderer: render.NewRenderer(avatars),
		Messages: messages,
		Prefix:   cfg.BotPrefix,
	}
	// nil stores stay nil interfaces so the hub skips them
	if board != nil {
		deps.Leaderboard = board
	}
	if cfg.ProfileBaseURL != "" {
		deps.Profiles = profile.NewClient(cfg.ProfileBaseURL)
	}

	hub := session.NewHub(session.Config{
		Match:           match.Config{InitialCount: cfg.TowerSeed, Decay: cfg.HealthDecay},
		TickInterval:    cfg.TickInterval,
		LeaderboardSize: cfg.LeaderboardSize,
		IdleTimeout:     cfg.IdleTimeout,
		PrimeTimeout:    cfg.PrimeTimeout,
		AutoStart:       true,
	}, deps)

	var lbReader bot.Board
	var apiBoard httpapi.Board
	if board != nil {
		lbReader, apiBoard = board, board
	}
	handler := bot.NewHandler(bot.Options{
		Prefix:          cfg.BotPrefix,
		AllowedRooms:    cfg.AllowedRooms,
		LeaderboardSize: cfg.LeaderboardSize,
	}, hub, lbReader, messages, presenter)

	ws.OnMessage(func(msg *iris.Message) {
		// 입력은 수신 순서대로 큐잉, 응답만 비동기
		handler.Ingest(ctx, msg)
	})

	if cfg.HTTPAddr != "" {
		api := httpapi.New(apiBoard, runs, hub, cfg.LeaderboardSize)
		go func() {
			logger.Info("http_listen", zap.String("addr", cfg.HTTPAddr))
			if err := api.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("http_server_failed", zap.Error(err))
			}
		}()
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("iris_ws_connect_failed", zap.Error(err))
	}
	cancel()
	logger.Info("sushi_bot_ready", zap.String("prefix", cfg.BotPrefix), zap.Strings("rooms", cfg.AllowedRooms))

	<-ctx.Done()
	logger.Info("sushi_bot_shutdown")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	// 수신을 먼저 끊어야 Wait 중에 새 응답이 생기지 않는다
	_ = ws.Close(sctx)
	if err := handler.Wait(sctx); err != nil {
		logger.Warn("sushi_handler_drain", zap.Error(err))
	}
	if err := hub.Close(sctx); err != nil {
		logger.Warn("session_hub_close", zap.Error(err))
	}
}
