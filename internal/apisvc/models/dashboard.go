package models

import "github.com/shopspring/decimal"

type Dashboard struct {
	Player   *Player         `json:"player"`
	Balance  decimal.Decimal `json:"balance"`
	Faction  *Faction        `json:"faction,omitempty"`
	Missions []*Mission      `json:"missions"`
}
