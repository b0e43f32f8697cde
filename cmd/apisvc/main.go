package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	config "github.com/avvvet/ganggpt-services/configs"
	"github.com/avvvet/ganggpt-services/internal/ai"
	apiconfig "github.com/avvvet/ganggpt-services/internal/apisvc/config"
	"github.com/avvvet/ganggpt-services/internal/apisvc/broker"
	"github.com/avvvet/ganggpt-services/internal/apisvc/db"
	"github.com/avvvet/ganggpt-services/internal/apisvc/handlers"
	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/archive"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/catalog"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
)

const SERVICE_NAME = "api"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg, err := apiconfig.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// pg connection
	dbpool, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(ctx, dbpool); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	cancel()

	playerStore := store.NewPlayerStore(dbpool)
	factionStore := store.NewFactionStore(dbpool)
	ledgerStore := store.NewLedgerStore(dbpool)
	missionStore := store.NewMissionStore(dbpool)
	companionStore := store.NewCompanionStore(dbpool)
	memoryStore := store.NewMemoryStore(dbpool)

	cat, err := catalog.Load(os.Getenv("CATALOG_FILE"))
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.SeedCatalog(ctx, cat, factionStore, companionStore); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	cancel()

	aiClient := ai.NewClient(ai.Config{
		Endpoint:    cfg.AIEndpoint,
		APIKey:      cfg.AIKey,
		Deployment:  cfg.AIDeployment,
		APIVersion:  cfg.AIVersion,
		MaxTokens:   cfg.AIMaxTokens,
		Temperature: cfg.AITemp,
		Timeout:     cfg.AITimeout,
		MaxRetries:  cfg.AIRetries,
	})
	if !cfg.AIConfigured() {
		log.Warn("Azure OpenAI is not configured: companions are offline and missions come from templates")
	}

	// transcripts are optional
	var archiver service.Archiver
	if cfg.MongoURI != "" {
		arc, err := archive.Connect(context.Background(), cfg.MongoURI, cfg.TranscriptTTL)
		if err != nil {
			log.Fatalf("transcript archive: %v", err)
		}
		defer arc.Close(context.Background())
		archiver = arc
		log.Printf("transcript archive connected")
	}

	tokenAuth := auth.NewTokenAuth(cfg.JWTSecret)
	svc := handlers.Services{
		Players: service.NewPlayerService(playerStore, ledgerStore, factionStore, missionStore, tokenAuth, service.PlayerConfig{
			StarterBalance: cfg.StarterBalance,
			TokenTTL:       cfg.JWTTTL,
			HashCost:       bcrypt.DefaultCost,
		}),
		Factions: service.NewFactionService(factionStore, playerStore),
		Economy:  service.NewEconomyService(ledgerStore, playerStore),
		Missions: service.NewMissionService(missionStore, playerStore, factionStore, aiClient, cat, service.MissionConfig{
			MaxActive: cfg.MaxActiveMissions,
		}),
		Companions: service.NewCompanionService(companionStore, memoryStore, playerStore, factionStore, aiClient, archiver, service.CompanionConfig{
			Recent:      cfg.MemoryRecent,
			Important:   cfg.MemoryImportant,
			KeepPerPair: cfg.MemoryKeep,
			Retention:   cfg.MemoryRetention,
		}),
	}

	// Connect to NATS
	n, err := natsx.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	b := broker.NewBroker(n.Conn, broker.Services{
		Players:    svc.Players,
		Missions:   svc.Missions,
		Companions: svc.Companions,
	}, 32, cfg.AITimeout+15*time.Second)

	// bridge events, load balanced across api instances
	sub, err := b.QueueSubscribe(n.Conn, natsx.BridgeEvents, natsx.APIQueueGroup)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to queue %v", err)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(tokenAuth, svc, cfg.AILimit, cfg.Port)
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	sub.Drain()
	b.Wait()

	ctx, cancel = context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
