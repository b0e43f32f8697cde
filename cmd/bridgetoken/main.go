// Command bridgetoken prints a service token for a game server to present to
// bridgesvc and to the mission completion route.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/ganggpt-services/configs"
	"github.com/avvvet/ganggpt-services/internal/auth"
)

func main() {
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	id := flag.Int64("server", 0, "game server id carried as the token subject")
	flag.Parse()

	config.LoadEnv("bridgetoken")

	secret := os.Getenv("JWT_SECRET_KEY")
	if len(secret) < 16 {
		log.Fatal("JWT_SECRET_KEY must be at least 16 characters")
	}

	token, err := auth.IssueToken(auth.NewTokenAuth(secret), *id, auth.RoleService, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
