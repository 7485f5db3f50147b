package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/event"
)

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

	log.WithFields(map[string]interface{}{"component": "outbox"}).
		Error(errors.New("smtp down"), "Delivery failed", "record_id", "r-1", "attempts", 3)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "Delivery failed", line["message"])
	assert.Equal(t, "smtp down", line["error"])
	assert.Equal(t, "outbox", line["component"])
	assert.Equal(t, "r-1", line["record_id"])
	assert.EqualValues(t, 3, line["attempts"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: WarnLevel, Output: &buf, JSON: true})

	log.Info("hidden")
	log.Debug("hidden")
	assert.Zero(t, buf.Len())

	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, InfoLevel, ParseLevel(""))
	assert.Equal(t, InfoLevel, ParseLevel("verbose"))
}

func TestWithContextAddsEventMetadata(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger(&Config{Level: InfoLevel, Output: &buf, JSON: true})

	ctx := event.WithMetadata(context.Background(), event.Metadata{
		event.MetaCorrelationID: "req-7",
		event.MetaActorID:       "ops@example.com",
		"ignored":               "x",
	})
	log.WithContext(ctx).Info("Events appended")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-7", line["correlation_id"])
	assert.Equal(t, "ops@example.com", line["actor_id"])
	assert.NotContains(t, line, "ignored")

	assert.Same(t, log, log.WithContext(context.Background()))
}
