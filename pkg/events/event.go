package events

import (
	"time"

	"github.com/google/uuid"
)

// Event is a recovery lifecycle transition forwarded to the external bus.
type Event interface {
	// EventType is the subject suffix, e.g. "churn_created".
	EventType() string
	ProjectID() uuid.UUID
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// Lifecycle is the only Event the recovery engine emits.
type Lifecycle struct {
	Kind       string
	Project    uuid.UUID
	Data       map[string]interface{}
	OccurredAt time.Time
}

func NewLifecycle(kind string, projectId uuid.UUID, data map[string]interface{}, at time.Time) Lifecycle {
	if data == nil {
		data = map[string]interface{}{}
	}
	return Lifecycle{Kind: kind, Project: projectId, Data: data, OccurredAt: at}
}

func (e Lifecycle) EventType() string              { return e.Kind }
func (e Lifecycle) ProjectID() uuid.UUID            { return e.Project }
func (e Lifecycle) Payload() map[string]interface{} { return e.Data }
func (e Lifecycle) Timestamp() time.Time            { return e.OccurredAt }
