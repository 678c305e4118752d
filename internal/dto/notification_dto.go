package dto

import (
	"time"

	"github.com/google/uuid"
)

// NotificationMessage travels on the in-process bus between a lifecycle
// transition and the channel deliveries.
type NotificationMessage struct {
	ProjectId  uuid.UUID              `json:"project_id"`
	Kind       string                 `json:"kind"`
	OccurredAt time.Time              `json:"occurred_at"`
	Payload    map[string]interface{} `json:"payload"`
}
