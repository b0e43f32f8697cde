// Package fakes provides in-memory versions of the apisvc stores and of the
// AI and archive collaborators, for service, handler and broker tests.
//
// All stores created from one DB share its state, so a mission completion
// shows up in the ledger and on the player the same way it does in Postgres.
//
//	db := fakes.New()
//	players := db.Players()
//	p := db.SeedPlayer(t, "Vinewood_Vic")
package fakes
