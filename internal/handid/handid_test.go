package handid

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Len(t, id, 26)
	require.NoError(t, Validate(id))
}

func TestNewUnique(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := New()
		require.False(t, ids[id], "duplicate ID generated: %s", id)
		ids[id] = true
	}
}

func TestNewTimeSorted(t *testing.T) {
	var ids []string
	for i := 0; i < 10; i++ {
		ids = append(ids, New())
		time.Sleep(time.Millisecond)
	}
	for i := 1; i < len(ids); i++ {
		assert.Negative(t, strings.Compare(ids[i-1], ids[i]), "%s should sort before %s", ids[i-1], ids[i])
	}
}

func TestParseRoundTrip(t *testing.T) {
	u := uuid.Must(uuid.NewV7())
	got, err := Parse(Encode(u))
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestValidate(t *testing.T) {
	v4 := Encode(uuid.New())

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", New(), false},
		{"too short", "01h5n0et5q6mt3v7ms123", true},
		{"too long", "01h5n0et5q6mt3v7ms1234abcdef", true},
		{"bad character", "01h5n0et5q6mt3v7ms1234abcu", true},
		{"uppercase", strings.ToUpper(New()), true},
		{"not version 7", v4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
