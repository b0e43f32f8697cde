package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/ganggpt-services/configs"
	apiconfig "github.com/avvvet/ganggpt-services/internal/apisvc/config"
	"github.com/avvvet/ganggpt-services/internal/apisvc/db"
	"github.com/avvvet/ganggpt-services/internal/apisvc/service"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/comm"
	natsx "github.com/avvvet/ganggpt-services/internal/nats"
)

const SERVICE_NAME = "ctl"

const expireBatch = 200

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

type publisher interface {
	Publish(subj string, data []byte) error
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

	// Connect to NATS
	n, err := natsx.Connect(SERVICE_NAME + "-" + instanceId)
	if err != nil {
		log.Fatalf("Error: unable to connect to NATS server %v", err)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	missions := service.NewMissionService(store.NewMissionStore(dbpool), store.NewPlayerStore(dbpool), store.NewFactionStore(dbpool), nil, nil, service.MissionConfig{
		MaxActive: cfg.MaxActiveMissions,
	})
	companions := service.NewCompanionService(store.NewCompanionStore(dbpool), store.NewMemoryStore(dbpool), store.NewPlayerStore(dbpool), store.NewFactionStore(dbpool), nil, nil, service.CompanionConfig{
		KeepPerPair: cfg.MemoryKeep,
		Retention:   cfg.MemoryRetention,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	expireTicker := time.NewTicker(cfg.SweepInterval)
	defer expireTicker.Stop()
	pruneTicker := time.NewTicker(cfg.PruneInterval)
	defer pruneTicker.Stop()

	log.Infof("%s service sweeping missions every %s, pruning memories every %s", SERVICE_NAME, cfg.SweepInterval, cfg.PruneInterval)
	for {
		select {
		case <-ctx.Done():
			log.Infof("%s service stopped", SERVICE_NAME)
			return
		case <-expireTicker.C:
			if _, err := expireMissions(ctx, missions, n.Conn); err != nil {
				log.Errorf("expire missions: %v", err)
			}
		case <-pruneTicker.C:
			if _, err := pruneMemories(ctx, companions); err != nil {
				log.Errorf("prune memories: %v", err)
			}
		}
	}
}

// expireMissions expires overdue missions batch by batch and tells the game
// servers about each one.
func expireMissions(ctx context.Context, missions *service.MissionService, pub publisher) (int, error) {
	total := 0
	for {
		expired, err := missions.ExpireOverdue(ctx, expireBatch)
		if err != nil {
			return total, err
		}
		for _, m := range expired {
			publishExpired(pub, comm.MissionRef{MissionId: m.ID.String(), PlayerId: m.PlayerID})
		}
		total += len(expired)
		if len(expired) < expireBatch {
			break
		}
	}
	if total > 0 {
		log.Infof("expired %d missions", total)
	}
	return total, nil
}

func pruneMemories(ctx context.Context, companions *service.CompanionService) (int64, error) {
	n, err := companions.Prune(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Infof("pruned %d companion memories", n)
	}
	return n, nil
}

// publishExpired broadcasts to every game server.
func publishExpired(pub publisher, ref comm.MissionRef) {
	msg, err := comm.NewMessage(comm.EventMissionExpired, ref, "", 0)
	if err != nil {
		log.Errorf("error [publishExpired] marshaling mission %s: %v", ref.MissionId, err)
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("error [publishExpired] marshaling WSMessage: %v", err)
		return
	}

	if err := pub.Publish(natsx.APIEvents, payload); err != nil {
		log.Errorf("error publishing mission-expired for %s: %v", ref.MissionId, err)
	}
}
