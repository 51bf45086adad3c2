package codec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/Maggot4703/Crew-sub000/pkg/errors"
	"github.com/Maggot4703/Crew-sub000/pkg/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
	}{
		{"null", nil},
		{"bool", true},
		{"string", "hello"},
		{"number", float64(42.5)},
		{"array", []interface{}{float64(1), "two", nil}},
		{"object", map[string]interface{}{"a": float64(1), "b": "x"}},
		{"nested", map[string]interface{}{
			"rows": []interface{}{
				map[string]interface{}{"name": "alice", "rank": float64(3)},
				map[string]interface{}{"name": "bob", "rank": float64(7)},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.value)
			require.NoError(t, err)

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestEncodeSubstitutesNaNAndInfinity(t *testing.T) {
	data, err := Encode(map[string]interface{}{
		"nan":    math.NaN(),
		"posinf": math.Inf(1),
		"neginf": math.Inf(-1),
		"ok":     float64(1.5),
	})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	m := got.(map[string]interface{})
	assert.Nil(t, m["nan"])
	assert.Nil(t, m["posinf"])
	assert.Nil(t, m["neginf"])
	assert.Equal(t, float64(1.5), m["ok"])
}

func TestEncodeSubstitutesTimestamps(t *testing.T) {
	now := time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)

	data, err := Encode(map[string]interface{}{"t": now})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	m := got.(map[string]interface{})
	stamp, ok := m["t"].(string)
	require.True(t, ok, "timestamp should decode as a string")
	assert.Equal(t, "2026-08-29T10:30:00Z", stamp)

	parsed, err := time.Parse(time.RFC3339, stamp)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now))
}

func TestEncodeFloat32(t *testing.T) {
	data, err := Encode([]interface{}{float32(2), float32(math.NaN())})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(2), nil}, got)
}

func TestEncodeStructHonorsJSONTags(t *testing.T) {
	type record struct {
		Name     string `json:"name"`
		Rank     int    `json:"rank,omitempty"`
		Internal string `json:"-"`
		Plain    string
	}

	data, err := Encode(record{Name: "alice", Internal: "secret", Plain: "p"})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)

	m := got.(map[string]interface{})
	assert.Equal(t, "alice", m["name"])
	assert.Equal(t, "p", m["Plain"])
	assert.NotContains(t, m, "rank", "zero omitempty field should be dropped")
	assert.NotContains(t, m, "Internal")
	assert.NotContains(t, m, "-")
}

func TestEncodeUnsupportedTypeNamesTypeAndPath(t *testing.T) {
	_, err := Encode(map[string]interface{}{
		"rows": []interface{}{
			map[string]interface{}{"ch": make(chan int)},
		},
	})
	require.Error(t, err)
	assert.True(t, mcperrors.IsSerializationError(err))
	assert.Contains(t, err.Error(), "chan int")
	assert.Contains(t, err.Error(), "$.rows[0].ch")
}

func TestEncodeRejectsCyclicValues(t *testing.T) {
	t.Run("self-referential map", func(t *testing.T) {
		m := map[string]interface{}{}
		m["self"] = m

		_, err := Encode(m)
		require.Error(t, err)
		assert.True(t, mcperrors.IsSerializationError(err))
		assert.Contains(t, err.Error(), "cyclic")
		assert.Contains(t, err.Error(), "$.self")
	})

	t.Run("pointer cycle", func(t *testing.T) {
		type node struct {
			Name string `json:"name"`
			Next *node  `json:"next"`
		}
		a := &node{Name: "a"}
		b := &node{Name: "b", Next: a}
		a.Next = b

		_, err := Encode(a)
		require.Error(t, err)
		assert.True(t, mcperrors.IsSerializationError(err))
	})

	t.Run("slice cycle through map", func(t *testing.T) {
		m := map[string]interface{}{}
		s := []interface{}{m}
		m["items"] = s

		_, err := Encode(m)
		require.Error(t, err)
		assert.True(t, mcperrors.IsSerializationError(err))
	})
}

func TestEncodeAllowsSharedContainers(t *testing.T) {
	// the same map under two keys is reuse, not a cycle
	shared := map[string]interface{}{"x": float64(1)}
	data, err := Encode(map[string]interface{}{"a": shared, "b": shared})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	m := got.(map[string]interface{})
	assert.Equal(t, shared, m["a"])
	assert.Equal(t, shared, m["b"])
}

func TestEncodeRejectsNonStringMapKeys(t *testing.T) {
	_, err := Encode(map[int]string{1: "x"})
	require.Error(t, err)
	assert.True(t, mcperrors.IsSerializationError(err))
}

func TestDecodeMalformedInput(t *testing.T) {
	_, err := Decode([]byte(`{"x": [1, 2`))
	require.Error(t, err)
	assert.True(t, mcperrors.IsProtocolError(err))
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeInvalidJSON))
	assert.Contains(t, err.Error(), "offset")
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	require.Error(t, err)
	assert.True(t, mcperrors.IsProtocolError(err))
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := protocol.NewEnvelope(protocol.ContextTypeSnapshot, "crew export",
		protocol.NewDataBlock("crew.csv", []interface{}{
			map[string]interface{}{"name": "alice", "role": "pilot"},
		}))

	data, err := EncodeEnvelope(env)
	require.NoError(t, err)

	got, err := DecodeEnvelope(data)
	require.NoError(t, err)

	assert.Equal(t, env.Version, got.Version)
	assert.Equal(t, env.ContextType, got.ContextType)
	assert.Equal(t, env.Metadata, got.Metadata)
	require.Len(t, got.Payload, 1)
	assert.Equal(t, "crew.csv", got.Payload[0].DataSourceIdentifier)
	assert.Equal(t, 1, got.Payload[0].ItemCount)
	assert.Equal(t,
		map[string]interface{}{"name": "alice", "role": "pilot"},
		got.Payload[0].Items[0])
}

func TestEncodeEnvelopeValidates(t *testing.T) {
	env := protocol.NewEnvelope(protocol.ContextTypeSnapshot, "bad")
	env.Payload = []protocol.DataBlock{{
		DataSourceIdentifier: "crew.csv",
		ItemCount:            5,
		Items:                []interface{}{},
	}}

	_, err := EncodeEnvelope(env)
	require.Error(t, err)
	assert.True(t, mcperrors.IsValidationError(err))
}

func TestEncodeEnvelopeNil(t *testing.T) {
	_, err := EncodeEnvelope(nil)
	require.Error(t, err)
	assert.True(t, mcperrors.IsValidationError(err))
}

func TestDecodeEnvelopeWireSchema(t *testing.T) {
	wire := `{
		"version": "1.0.0",
		"context_type": "application_data_snapshot",
		"payload": [
			{
				"data_source_identifier": "npcs.xlsx",
				"item_count": 2,
				"items": [{"n": 1}, {"n": 2}]
			}
		],
		"metadata": {"timestamp": "2026-08-29T10:30:00Z", "description": "test"}
	}`

	env, err := DecodeEnvelope([]byte(wire))
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", env.Version)
	assert.Equal(t, "application_data_snapshot", env.ContextType)
	require.Len(t, env.Payload, 1)
	assert.Equal(t, 2, env.Payload[0].ItemCount)
	assert.Len(t, env.Payload[0].Items, 2)
	assert.Equal(t, "test", env.Metadata.Description)
	require.NoError(t, env.Validate())
}
