package models

import (
	"github.com/google/uuid"
)

// EntityTypePlayer tags stored player records.
const EntityTypePlayer = "player"

// Player is a registered participant, human or bot. Humans carry the id of
// their current client connection; bots never have one.
type Player struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	IsBot        bool      `json:"isBot"`
	ConnectionID string    `json:"connectionId,omitempty"`
}

func (p *Player) EntityType() string { return EntityTypePlayer }
func (p *Player) EntityID() string   { return p.ID.String() }
