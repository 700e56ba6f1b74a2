package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmirror/taskmirror/internal/codec"
	"github.com/taskmirror/taskmirror/internal/model"
	"github.com/taskmirror/taskmirror/internal/store"
)

func TestDecodeItem(t *testing.T) {
	item, err := codec.DecodeItem("a", store.Fields{
		"title":       "Buy milk",
		"dueDate":     float64(1700000100),
		"createdDate": float64(1700000000),
		"isDone":      false,
	})
	require.NoError(t, err)

	assert.Equal(t, "a", item.ID)
	assert.Equal(t, "Buy milk", item.Title)
	assert.Equal(t, time.UnixMilli(1700000100000), item.DueDate)
	assert.Equal(t, time.UnixMilli(1700000000000), item.CreatedDate)
	assert.False(t, item.IsDone)
}

func TestDecodeItem_IntegerTimestamps(t *testing.T) {
	// Decoders hand over int64 for whole numbers; the codec must widen them.
	item, err := codec.DecodeItem("a", store.Fields{
		"title":       "Buy milk",
		"dueDate":     int64(1700000100),
		"createdDate": int64(1700000000),
		"isDone":      true,
	})
	require.NoError(t, err)
	assert.Equal(t, time.UnixMilli(1700000100000), item.DueDate)
	assert.True(t, item.IsDone)
}

func TestDecodeItem_Failures(t *testing.T) {
	valid := store.Fields{
		"title":       "Buy milk",
		"dueDate":     float64(1700000100),
		"createdDate": float64(1700000000),
		"isDone":      false,
	}

	tests := []struct {
		name   string
		fields store.Fields
		reason string
	}{
		{"missing title", omit(valid, "title"), "title"},
		{"missing dueDate", omit(valid, "dueDate"), "dueDate"},
		{"missing createdDate", omit(valid, "createdDate"), "createdDate"},
		{"missing isDone", omit(valid, "isDone"), "isDone"},
		{"mismatched title", override(valid, "title", 42), "title"},
		{"mismatched dueDate", override(valid, "dueDate", "tomorrow"), "dueDate"},
		{"mismatched isDone", override(valid, "isDone", "true"), "isDone"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := codec.DecodeItem("b", test.fields)
			require.Error(t, err)

			var failure *codec.DecodeFailure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, "b", failure.DocumentID)
			assert.Equal(t, test.fields, failure.Fields)
			assert.Contains(t, failure.Reason, test.reason)
		})
	}
}

func TestEncodeItem_ExcludesID(t *testing.T) {
	fields := codec.EncodeItem(model.Item{
		ID:          "a",
		Title:       "Buy milk",
		DueDate:     time.UnixMilli(1700000100000),
		CreatedDate: time.UnixMilli(1700000000000),
		IsDone:      true,
	})

	assert.Equal(t, store.Fields{
		"title":       "Buy milk",
		"dueDate":     float64(1700000100),
		"createdDate": float64(1700000000),
		"isDone":      true,
	}, fields)
	assert.NotContains(t, fields, "id")
}

func TestItemRoundTrip(t *testing.T) {
	item := model.Item{
		ID:          "a",
		Title:       "Water the plants",
		DueDate:     time.UnixMilli(1700012345678),
		CreatedDate: time.UnixMilli(1700000000042),
		IsDone:      true,
	}

	decoded, err := codec.DecodeItem(item.ID, codec.EncodeItem(item))
	require.NoError(t, err)
	assert.Equal(t, item, decoded)
}

func TestDecodeProfile(t *testing.T) {
	profile := codec.DecodeProfile("u1", store.Fields{
		"name":   "George Abitbol",
		"email":  "george.abitbol@nas.lan",
		"joined": float64(1700000000),
	})

	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "George Abitbol", profile.Name)
	assert.Equal(t, "george.abitbol@nas.lan", profile.Email)
	assert.Equal(t, time.UnixMilli(1700000000000), profile.Joined)
}

func TestDecodeProfile_Lenient(t *testing.T) {
	profile := codec.DecodeProfile("u1", store.Fields{})

	assert.Equal(t, "N/A", profile.Name)
	assert.Equal(t, "N/A", profile.Email)
	assert.WithinDuration(t, time.Now(), profile.Joined, time.Minute)
}

func omit(fields store.Fields, key string) store.Fields {
	out := store.Fields{}
	for k, v := range fields {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func override(fields store.Fields, key string, value any) store.Fields {
	out := store.Fields{}
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}
