package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecomputeMessage asks the worker to rebuild one user's plan. It carries only
// identifiers; the worker reads a fresh snapshot from storage.
type RecomputeMessage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Trigger     string    `json:"trigger"`
	Force       bool      `json:"force,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

func NewRecomputeMessage(userID, trigger string, force bool) *RecomputeMessage {
	return &RecomputeMessage{
		ID:          uuid.NewString(),
		UserID:      userID,
		Trigger:     trigger,
		Force:       force,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *RecomputeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecomputeMessageFromJSON decodes a message and rejects one without a user.
func RecomputeMessageFromJSON(data []byte) (*RecomputeMessage, error) {
	var msg RecomputeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, fmt.Errorf("recompute message %q has no user_id", msg.ID)
	}
	return &msg, nil
}
