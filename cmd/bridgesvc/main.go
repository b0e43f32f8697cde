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

	config "github.com/avvvet/ganggpt-services/configs"
	"github.com/avvvet/ganggpt-services/internal/auth"
	"github.com/avvvet/ganggpt-services/internal/bridgesvc/broker"
	"github.com/avvvet/ganggpt-services/internal/bridgesvc/routes"
	"github.com/avvvet/ganggpt-services/internal/bridgesvc/ws"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
)

const SERVICE_NAME = "bridge"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	secret := os.Getenv("JWT_SECRET_KEY")
	if len(secret) < 16 {
		log.Fatal("JWT_SECRET_KEY must be at least 16 characters")
	}
	port := os.Getenv("BRIDGE_SERVICE_PORT")
	if port == "" {
		port = "8090"
	}

	// Connect to NATS
	n, err := natsx.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Initialize websocket hub, it publishes game events to apisvc
	s := ws.NewWs(n.Conn)

	// replies from apisvc go back to the game servers
	b := broker.NewBroker(n.Conn, s)
	sub, err := b.Subscribe(natsx.APIEvents)
	if err != nil {
		log.Fatalf("Error: unable to subscribe to %s %v", natsx.APIEvents, err)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(config.RateLimit("RATE_LIMIT", 600), 1*time.Minute))

	// Initialize routes
	routes.SetRoutes(r, auth.NewTokenAuth(secret), s, port)

	// no write timeout, websocket connections are long lived
	server := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 60 * time.Second,
		IdleTimeout: 60 * time.Second,
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

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
