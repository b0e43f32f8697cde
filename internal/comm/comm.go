package comm

import (
	"encoding/json"
)

// WSMessage is the envelope exchanged with game servers and relayed over NATS.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "player-join", "player-chat"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
	RemoteId int             `json:"remote_id,omitempty"` // RAGE:MP player handle on the game server
}

// Events sent by game servers.
const (
	EventPlayerJoin      = "player-join"
	EventPlayerQuit      = "player-quit"
	EventPlayerChat      = "player-chat"
	EventRequestMission  = "request-mission"
	EventMissionComplete = "mission-complete"
)

// Events sent back to game servers.
const (
	EventPlayerWelcome    = "player-welcome"
	EventCompanionReply   = "companion-reply"
	EventMissionOffer     = "mission-offer"
	EventMissionCompleted = "mission-completed"
	EventMissionExpired   = "mission-expired"
	EventError            = "error"
)

var gameEvents = map[string]bool{
	EventPlayerJoin:      true,
	EventPlayerQuit:      true,
	EventPlayerChat:      true,
	EventRequestMission:  true,
	EventMissionComplete: true,
}

// IsGameEvent reports whether t may be forwarded from a game server.
func IsGameEvent(t string) bool {
	return gameEvents[t]
}

// NewMessage marshals v into a WSMessage of the given type.
func NewMessage(t string, v interface{}, socketId string, remoteId int) (*WSMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &WSMessage{Type: t, Data: data, SocketId: socketId, RemoteId: remoteId}, nil
}

type PlayerJoin struct {
	SocialClub string `json:"social_club"`
	Name       string `json:"name"`
	RemoteId   int    `json:"remote_id,omitempty"`
}

type PlayerRef struct {
	PlayerId int64 `json:"player_id"`
}

type PlayerChat struct {
	PlayerId  int64  `json:"player_id"`
	Companion string `json:"companion"`
	Message   string `json:"message"`
}

type MissionRequest struct {
	PlayerId   int64  `json:"player_id"`
	Difficulty string `json:"difficulty"`
	Location   string `json:"location"`
}

type MissionRef struct {
	MissionId string `json:"mission_id"`
	PlayerId  int64  `json:"player_id,omitempty"`
}

type PlayerWelcome struct {
	PlayerId int64  `json:"player_id"`
	Name     string `json:"name"`
	Balance  string `json:"balance"`
	Faction  string `json:"faction,omitempty"`
}

type CompanionReply struct {
	PlayerId  int64  `json:"player_id"`
	Companion string `json:"companion"`
	Reply     string `json:"reply"`
}

type MissionOffer struct {
	PlayerId   int64    `json:"player_id"`
	MissionId  string   `json:"mission_id"`
	Title      string   `json:"title"`
	Objectives []string `json:"objectives"`
	Reward     string   `json:"reward"`
	ExpiresAt  int64    `json:"expires_at"`
}

type MissionCompleted struct {
	MissionId string `json:"mission_id"`
	PlayerId  int64  `json:"player_id"`
	Reward    string `json:"reward"`
	Balance   string `json:"balance"`
}

type ErrorReply struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
