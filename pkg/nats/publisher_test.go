package nats

import (
	"testing"
	"time"

	"windback-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSubjectScopesByProject(t *testing.T) {
	projectId := uuid.MustParse("7b0d2f8e-4c44-4d8e-9a51-3f1e2a9c6d10")
	ev := events.NewLifecycle("churn_recovered", projectId, nil, time.Now())

	assert.Equal(t, "events.7b0d2f8e-4c44-4d8e-9a51-3f1e2a9c6d10.churn_recovered", Subject(ev))
	assert.NotNil(t, ev.Payload())
}
