package activity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

func TestLogger_WritesEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewLogger(8, zap.New(core))

	id := uuid.New()
	l.Log(domain.ActivityEvent{
		Type:      domain.ActivityJobCreated,
		JobID:     id,
		Owner:     &domain.Owner{OrgID: "org-1", UserID: "u-1"},
		ItemCount: 3,
		At:        time.Now(),
	})
	l.Close()

	entries := logs.FilterMessage("Activity").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, string(domain.ActivityJobCreated), fields["type"])
	assert.Equal(t, id.String(), fields["job_id"])
	assert.Equal(t, "org-1", fields["org_id"])
	assert.EqualValues(t, 3, fields["item_count"])
}

func TestLogger_DropsWhenFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	l := &Logger{
		events: make(chan domain.ActivityEvent, 1),
		logger: zap.New(core),
		done:   make(chan struct{}),
	}
	// No drain goroutine: the second event cannot fit.
	l.Log(domain.ActivityEvent{Type: domain.ActivityJobCreated})
	l.Log(domain.ActivityEvent{Type: domain.ActivityJobFailed})

	assert.Equal(t, 1, logs.FilterMessage("Activity buffer full, event dropped").Len())
}

func TestLogger_LogAfterCloseIsIgnored(t *testing.T) {
	l := NewLogger(1, zap.NewNop())
	l.Close()
	l.Close()

	assert.NotPanics(t, func() {
		l.Log(domain.ActivityEvent{Type: domain.ActivityJobCompleted})
	})
}
