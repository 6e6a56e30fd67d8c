package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/park285/Sushi-Neko-bot/internal/iris"
	"github.com/park285/Sushi-Neko-bot/internal/leaderboard"
	"github.com/park285/Sushi-Neko-bot/internal/match"
	"github.com/park285/Sushi-Neko-bot/internal/render"
	"github.com/park285/Sushi-Neko-bot/internal/tower"
)

// sushicheck probes the Iris gateway and Redis leaderboard, and can write a sample frame.
func main() {
	framePath := flag.String("frame", "", "write a sample tower PNG to this path")
	watch := flag.Duration("watch", 10*time.Second, "how long to print WebSocket messages")
	flag.Parse()

	baseURL := os.Getenv("IRIS_BASE_URL")
	wsURL := os.Getenv("IRIS_WS_URL")
	headers := iris.StaticHeaders(os.Getenv("X_USER_ID"), os.Getenv("X_USER_EMAIL"), os.Getenv("X_SESSION_ID"))

	if *framePath != "" {
		if err := writeSampleFrame(*framePath); err != nil {
			log.Printf("frame error: %v", err)
		} else {
			log.Printf("frame written: %s", *framePath)
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		printLeaderboard(redisURL)
	}

	if baseURL == "" {
		log.Println("IRIS_BASE_URL not set; skipping Iris checks")
		return
	}
	client := iris.NewClient(baseURL, iris.WithHeaderProvider(headers), iris.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cfg, err := client.GetConfig(ctx)
	if err != nil {
		log.Printf("/config error: %v", err)
	} else {
		log.Printf("/config ok: bot=%s port=%d polling=%d rate=%d endpoint=%s", cfg.BotName, cfg.Port, cfg.PollingSpeed, cfg.MessageRate, cfg.WebserverEndpoint)
	}

	if wsURL == "" {
		log.Println("IRIS_WS_URL not set; skipping WS check")
		return
	}
	ws := iris.NewWebSocket(wsURL, 0, time.Second)
	ws.SetHeaderProvider(headers)
	ws.OnStateChange(func(state iris.WebSocketState) {
		log.Printf("WS state: %s", state)
	})
	ws.OnMessage(func(msg *iris.Message) {
		from := msg.SenderName()
		if from == "" {
			from = "?"
		}
		fmt.Printf("WS msg room=%s from=%s user=%s text=%q\n", msg.Room, from, msg.UserID(), msg.Msg)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("WS connect error: %v", err)
		return
	}
	<-time.After(*watch)
	_ = ws.Close(context.Background())
}

func printLeaderboard(redisURL string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	store, err := leaderboard.Dial(ctx, redisURL)
	if err != nil {
		log.Printf("redis error: %v", err)
		return
	}
	defer func() { _ = store.Close() }()
	entries, err := store.Top(ctx, leaderboard.DefaultTopN)
	if err != nil {
		log.Printf("leaderboard error: %v", err)
		return
	}
	log.Printf("leaderboard: %d entries", len(entries))
	for i, e := range entries {
		fmt.Printf("%d. %s %d (%s)\n", i+1, e.Name, e.Score, e.ExternalID)
	}
}

func writeSampleFrame(path string) error {
	t := tower.NewManager(tower.NewPRNG(1))
	ctrl := match.NewController(match.Config{}, t, nil)
	ctrl.OnReady()
	ctrl.OnStartPressed()
	for i := 0; i < 3; i++ {
		// 안전한 쪽으로만 친다
		side := tower.Left
		if front, _ := t.PeekFront(); front == tower.Left {
			side = tower.Right
		}
		_, _ = ctrl.OnDirectionalInput(side)
	}
	png, err := render.NewRenderer(nil).RenderPNG(context.Background(), render.Frame{
		Pieces:        ctrl.TowerPieces(),
		Score:         ctrl.Score(),
		Health:        ctrl.Health(),
		State:         ctrl.State(),
		CharacterSide: tower.Left,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0o644)
}
