package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_LogAndRead(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewFileLogger(FileLoggerConfig{BasePath: dir, Rotate: false})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	actorID := int64(7)

	event := NewEvent(ctx, EventTypeRoleCreate, EventStatusSuccess)
	event.ActorID = &actorID
	event.ResourceType = "role"
	event.ResourceID = "editor"
	require.NoError(t, logger.Log(ctx, event))

	denied := NewEvent(ctx, EventTypeAccessDenied, EventStatusDenied)
	denied.ResourceType = "permission"
	denied.ResourceID = "documents.change_document"
	require.NoError(t, logger.Log(ctx, denied))

	events, err := logger.ReadLogs(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventTypeRoleCreate, events[0].EventType)
	assert.Equal(t, "editor", events[0].ResourceID)
	assert.Equal(t, EventStatusDenied, events[1].Status)

	// Bounded read
	events, err = logger.ReadLogs(1)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestFileLogger_Rotation(t *testing.T) {
	dir := t.TempDir()

	// Tiny max size forces rotation on the second write
	logger, err := NewFileLogger(FileLoggerConfig{
		BasePath: dir,
		Rotate:   true,
		MaxSize:  10,
		MaxFiles: 5,
	})
	require.NoError(t, err)
	defer logger.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		event := NewEvent(ctx, EventTypePermissionCheck, EventStatusSuccess)
		event.ResourceID = "documents.view_document"
		require.NoError(t, logger.Log(ctx, event))
	}

	// The live file only holds what was written since the last rotation
	events, err := logger.ReadLogs(0)
	require.NoError(t, err)
	assert.True(t, len(events) < 3, "expected rotation to move earlier events aside")
}
