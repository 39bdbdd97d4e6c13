package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGroupByTopicSetsKeyAndHeaders(t *testing.T) {
	now := time.Date(2024, 6, 1, 7, 1, 0, 0, time.UTC)
	msgs := []Message{
		{EventID: 1, UserID: 7, EventType: "schedule.created", Topic: "schedule_events", PartitionKey: "7", Payload: json.RawMessage(`{"schedule_id":1}`)},
		{EventID: 2, UserID: 7, EventType: "notification.reminder_created", Topic: "notification_events", PartitionKey: "7", Payload: json.RawMessage(`{"notification_id":3}`)},
		{EventID: 3, UserID: 8, EventType: "schedule.completion_changed", Topic: "schedule_events", PartitionKey: "8", Payload: json.RawMessage(`{"schedule_id":2}`)},
	}

	batches, err := groupByTopic(msgs, now)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	require.Len(t, batches["schedule_events"], 2)
	require.Len(t, batches["notification_events"], 1)

	first := batches["schedule_events"][0]
	require.Equal(t, []byte("7"), first.Key)
	require.JSONEq(t, `{"schedule_id":1}`, string(first.Value))
	require.Equal(t, now, first.Time)
	require.Len(t, first.Headers, 2)
	require.Equal(t, "event_type", first.Headers[0].Key)
	require.Equal(t, "schedule.created", string(first.Headers[0].Value))
	require.Equal(t, "user_id", first.Headers[1].Key)
	require.Equal(t, "7", string(first.Headers[1].Value))
}

func TestGroupByTopicRejectsBrokenRows(t *testing.T) {
	_, err := groupByTopic([]Message{{EventID: 1, EventType: "schedule.created", Payload: json.RawMessage(`{}`)}}, time.Now())
	require.ErrorContains(t, err, "missing topic")

	_, err = groupByTopic([]Message{{EventID: 2, Topic: "schedule_events", Payload: json.RawMessage(`{`)}}, time.Now())
	require.ErrorContains(t, err, "invalid payload")
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 0, 0)
	require.Equal(t, 5, m.maxRetries)
	require.Equal(t, time.Minute, m.baseDelay)

	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 4*time.Minute, m.backoffDelay(3))
	require.Equal(t, time.Hour, m.backoffDelay(8))
	require.Equal(t, time.Hour, m.backoffDelay(64))
}
