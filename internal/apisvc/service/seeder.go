package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/ganggpt-services/internal/apisvc/models"
	"github.com/avvvet/ganggpt-services/internal/apisvc/store"
	"github.com/avvvet/ganggpt-services/internal/catalog"
	log "github.com/sirupsen/logrus"
)

// SeedCatalog makes sure the catalog's AI factions and companions exist.
// Running it again only refreshes companion personas.
func SeedCatalog(ctx context.Context, cat *catalog.Catalog, factions FactionStore, companions CompanionStore) error {
	byTag := make(map[string]int64, len(cat.Factions))
	for _, cf := range cat.Factions {
		f, err := factions.Seed(ctx, &models.Faction{
			Name:        cf.Name,
			Tag:         cf.Tag,
			Kind:        cf.Kind,
			Color:       cf.Color,
			Territory:   cf.Territory,
			Description: cf.Description,
		})
		if errors.Is(err, store.ErrConflict) {
			log.Warnf("skipping catalog faction %s: %v", cf.Name, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed faction %s: %w", cf.Tag, err)
		}
		byTag[cf.Tag] = f.ID
	}

	for _, cc := range cat.Companions {
		c := &models.Companion{Name: cc.Name, Persona: cc.Persona}
		if id, ok := byTag[cc.Faction]; ok {
			c.FactionID = &id
		}
		if err := companions.Upsert(ctx, c); err != nil {
			return fmt.Errorf("seed companion %s: %w", cc.Name, err)
		}
	}

	log.Infof("catalog seeded: %d factions, %d companions, %d mission templates",
		len(cat.Factions), len(cat.Companions), len(cat.Missions))
	return nil
}
