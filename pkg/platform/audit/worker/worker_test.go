package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "certreg/pkg/platform/audit"
	"certreg/pkg/platform/audit/store/memory"
)

func TestWorkerStopsWhenInboxClosed(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 3)
	inbox <- audit.Event{Actor: "ST1ISSUER", Action: string(audit.EventCertificationMinted)}
	inbox <- audit.Event{Actor: "ST1ISSUER", Action: string(audit.EventCertificationMinted)}
	close(inbox)

	err := NewWorker(store, inbox, nil).Run(context.Background())
	require.NoError(t, err)

	events, err := store.ListByActor(context.Background(), "ST1ISSUER")
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestWorkerDrainsBufferedEventsOnCancel(t *testing.T) {
	store := memory.NewInMemoryStore()
	inbox := make(chan audit.Event, 5)
	for range 5 {
		inbox <- audit.Event{Actor: "ST1TEACHER", Action: string(audit.EventCertificationBurned)}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewWorker(store, inbox, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	events, err := store.ListByActor(context.Background(), "ST1TEACHER")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}
