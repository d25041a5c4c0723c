package activity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voyagecrm/voyagecrm/internal/shared"
)

type memoryRepo struct {
	events []Event
}

func (m *memoryRepo) Insert(_ context.Context, e Event) error {
	e.ID = int64(len(m.events) + 1)
	m.events = append(m.events, e)
	return nil
}

func (m *memoryRepo) ListByRequest(_ context.Context, requestID int64, limit int) ([]Event, error) {
	var out []Event
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].RequestID == requestID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func TestRecordAndTimeline(t *testing.T) {
	repo := &memoryRepo{}
	now := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, func() time.Time { return now })
	actor := shared.Actor{ID: 2, Role: shared.RoleSales}

	require.NoError(t, svc.RecordEvent(context.Background(), 5, actor, "quotation_published", ""))
	require.NoError(t, svc.RecordEvent(context.Background(), 5, actor, "quotation_accepted", "customer confirmed"))
	require.NoError(t, svc.RecordEvent(context.Background(), 9, actor, "request_created", ""))

	events, err := svc.Timeline(context.Background(), 5, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "quotation_accepted", events[0].Action, "newest first")
	require.Equal(t, shared.RoleSales, events[0].ActorRole)
	require.Equal(t, now, events[0].CreatedAt)
}

func TestTimelineLimitClamped(t *testing.T) {
	repo := &memoryRepo{}
	svc := NewService(repo, nil)
	actor := shared.Actor{ID: 1, Role: shared.RoleAdmin}
	for i := 0; i < 60; i++ {
		require.NoError(t, svc.RecordEvent(context.Background(), 1, actor, "note_added", ""))
	}

	events, err := svc.Timeline(context.Background(), 1, -3)
	require.NoError(t, err)
	require.Len(t, events, 50)
}
