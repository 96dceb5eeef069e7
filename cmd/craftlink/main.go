package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/craftlink/craftlink/internal/api"
	"github.com/craftlink/craftlink/internal/auth"
	"github.com/craftlink/craftlink/internal/bridge"
	"github.com/craftlink/craftlink/internal/config"
	"github.com/craftlink/craftlink/internal/console"
	"github.com/craftlink/craftlink/internal/db"
	"github.com/craftlink/craftlink/internal/gamelog"
	"github.com/craftlink/craftlink/internal/presence"
	"github.com/craftlink/craftlink/internal/relay"
	"github.com/craftlink/craftlink/internal/store"
	"github.com/craftlink/craftlink/internal/telegram"
	"github.com/craftlink/craftlink/internal/wizard"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	st := store.New(database)
	chat := telegram.NewClient(cfg.BotToken)

	profanity, err := relay.LoadProfanityFilter(cfg.ProfanityPath)
	if err != nil {
		log.Printf("Warning: %v (profanity filtering disabled)", err)
		profanity = relay.NewProfanityFilter(nil)
	}

	sup := console.NewSupervisor(cfg.ConsoleAddr, cfg.ConsolePassword, cfg.RetryDelay,
		bridge.NewAlerter(chat, cfg.AlertChatID))

	rl := relay.New(relay.Config{
		BridgeChatID:    cfg.BridgeChatID,
		BridgeTopic:     cfg.BridgeTopic,
		RelayTag:        cfg.RelayTag,
		CooldownSeconds: cfg.CooldownSeconds,
	}, chat, st, profanity)

	poller := presence.NewPoller(chat, st, cfg.BridgeChatID, cfg.BridgeTopic)

	sup.Subscribe(rl.SetSession)
	sup.Subscribe(poller.SetSession)

	engine := wizard.NewEngine(st)
	flows := bridge.Flows{
		Registration: wizard.NewRegistration(st),
		Link:         wizard.NewLink(st),
		ServerAdd:    wizard.NewServerAdd(st),
		AdminAdd:     wizard.NewAdminAdd(st),
		RankGroupAdd: wizard.NewRankGroupAdd(st),
		GroupSet:     wizard.NewGroupSet(st),
		TimeAdd:      wizard.NewTimeAdd(st, sup),
	}
	flows.Registration.Attach(engine)
	flows.Link.Attach(engine)
	flows.ServerAdd.Attach(engine)
	flows.AdminAdd.Attach(engine)
	flows.RankGroupAdd.Attach(engine)
	flows.GroupSet.Attach(engine)
	flows.TimeAdd.Attach(engine)

	verifier := wizard.NewVerifier(st, chat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ring := gamelog.NewRing(256)
	classifier := gamelog.NewClassifier()
	classifier.Subscribe(ring.Add)
	classifier.Subscribe(func(ev gamelog.Event) {
		rl.HandleGameEvent(ctx, ev)
		if v, ok := ev.(gamelog.VerifyRequest); ok {
			verifier.HandleEvent(ctx, v)
		}
	})
	watcher := gamelog.NewWatcher(cfg.LogPath, classifier.HandleLine)

	b := bridge.New(cfg, chat, st, engine, rl, poller, flows)

	authSvc, err := auth.NewService(database, cfg.OpsUser, cfg.OpsPass)
	if err != nil {
		log.Fatalf("failed to init ops auth: %v", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      api.Router(authSvc, sup, poller, ring, st),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sup.Start()
	go watcher.Run(ctx)
	go poller.Run(ctx)
	go b.Run(ctx)

	go func() {
		log.Printf("craftlink ops API listening on %s", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ops API error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	cancel()
	sup.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
