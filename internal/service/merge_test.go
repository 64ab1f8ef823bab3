package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolchat/internal/models"
)

func msgAt(id string, roomID uint, ts string) models.Message {
	created, _ := time.Parse(time.RFC3339, ts)
	return models.Message{ID: id, RoomID: roomID, Content: "c-" + id, CreatedAt: created}
}

func ids(messages []models.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestMergeMessagesDedup(t *testing.T) {
	m1 := msgAt("m1", 1, "2024-09-01T10:00:00Z")
	m2 := msgAt("m2", 1, "2024-09-01T10:01:00Z")

	merged := mergeMessages([]models.Message{m1}, []models.Message{m1, m2})
	assert.Equal(t, []string{"m1", "m2"}, ids(merged))

	// 同一批次套用第二次，結果不變
	merged = mergeMessages(merged, []models.Message{m1, m2})
	assert.Equal(t, []string{"m1", "m2"}, ids(merged))
}

func TestMergeMessagesCommutative(t *testing.T) {
	a := []models.Message{
		msgAt("m1", 1, "2024-09-01T10:00:00Z"),
		msgAt("m2", 1, "2024-09-01T10:01:00Z"),
	}
	b := []models.Message{
		msgAt("m2", 1, "2024-09-01T10:01:00Z"),
		msgAt("m3", 1, "2024-09-01T09:59:00Z"),
	}

	ab := mergeMessages(mergeMessages(nil, a), b)
	ba := mergeMessages(mergeMessages(nil, b), a)
	union := mergeMessages(nil, append(append([]models.Message{}, a...), b...))

	assert.Equal(t, ids(ab), ids(ba))
	assert.Equal(t, ids(ab), ids(union))
	assert.Equal(t, []string{"m3", "m1", "m2"}, ids(ab))
}

func TestMergeMessagesOrdering(t *testing.T) {
	batches := [][]models.Message{
		{msgAt("m5", 1, "2024-09-01T10:05:00Z")},
		{msgAt("m1", 1, "2024-09-01T10:00:00Z"), msgAt("m3", 1, "2024-09-01T10:03:00Z")},
		{msgAt("m4", 1, "2024-09-01T10:04:00Z"), msgAt("m2", 1, "2024-09-01T10:01:00Z")},
		{msgAt("m3", 1, "2024-09-01T10:03:00Z")}, // 重複
	}

	var merged []models.Message
	for _, batch := range batches {
		merged = mergeMessages(merged, batch)
		// 每次合併後排序不變量都重新成立
		for i := 1; i < len(merged); i++ {
			assert.False(t, merged[i].CreatedAt.Before(merged[i-1].CreatedAt),
				"messages out of order after merge")
		}
	}
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ids(merged))
}

func TestMergeMessagesTieBreakDeterministic(t *testing.T) {
	// 相同時間戳以 id 決定先後，批次順序不影響結果
	x := msgAt("a", 1, "2024-09-01T10:00:00Z")
	y := msgAt("b", 1, "2024-09-01T10:00:00Z")

	xy := mergeMessages([]models.Message{x}, []models.Message{y})
	yx := mergeMessages([]models.Message{y}, []models.Message{x})

	require.Equal(t, ids(xy), ids(yx))
	assert.Equal(t, []string{"a", "b"}, ids(xy))
}

func TestMergeMessagesIncomingFieldsWin(t *testing.T) {
	optimistic := msgAt("m1", 1, "2024-09-01T10:00:00Z")
	confirmed := optimistic
	confirmed.Content = "server copy"

	merged := mergeMessages([]models.Message{optimistic}, []models.Message{confirmed})
	require.Len(t, merged, 1)
	assert.Equal(t, "server copy", merged[0].Content)
}
