package models

import "github.com/google/uuid"

// GameAction is one entry of a game's action log, consumed by the historian.
type GameAction struct {
	GameID      uuid.UUID              `json:"game_id"`
	ActionIndex int                    `json:"action_index"`
	ActorID     uuid.UUID              `json:"actor_id"`
	ActionType  string                 `json:"action_type"`
	Payload     map[string]interface{} `json:"payload"`
	Timestamp   int64                  `json:"timestamp"` // epoch millis
}
