package state

import (
	"encoding/json"
	"testing"

	"github.com/cuemby/bandstand/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func patch(t *testing.T, js string) types.Patch {
	t.Helper()
	var p types.Patch
	require.NoError(t, json.Unmarshal([]byte(js), &p))
	return p
}

func TestNewStoreIsOffline(t *testing.T) {
	s := NewStore()
	assert.Equal(t, types.OfflineState(), s.Snapshot())
}

func TestApplyMergesFields(t *testing.T) {
	s := NewStore()

	_, snap, err := s.Apply(patch(t, `{"status":"online","guilds":3,"volume":55}`))
	require.NoError(t, err)
	assert.Equal(t, types.BotStatusOnline, snap.Status)
	assert.Equal(t, 3, snap.GuildCount)
	assert.Equal(t, 55, snap.Volume)

	_, snap, err = s.Apply(patch(t, `{"isPlaying":true}`))
	require.NoError(t, err)
	assert.True(t, snap.IsPlaying)
	assert.Equal(t, types.BotStatusOnline, snap.Status, "absent fields keep their value")
	assert.Equal(t, 55, snap.Volume)
}

func TestApplyLastWriteWins(t *testing.T) {
	s := NewStore()
	patches := []string{
		`{"volume":10,"users":1}`,
		`{"volume":20}`,
		`{"users":7,"cpu":1.5}`,
		`{"volume":30,"status":"degraded"}`,
		`{"cpu":2.25}`,
	}

	for _, p := range patches {
		_, _, err := s.Apply(patch(t, p))
		require.NoError(t, err)
	}

	want := types.OfflineState()
	want.Volume = 30
	want.UserCount = 7
	want.CPUPercent = 2.25
	want.Status = types.BotStatusDegraded
	assert.Equal(t, want, s.Snapshot())
}

func TestApplyReturnsCoercedDelta(t *testing.T) {
	s := NewStore()

	delta, _, err := s.Apply(patch(t, `{"volume":"42","guilds":2.6,"bogus":true}`))
	require.NoError(t, err)

	assert.Len(t, delta, 2)
	assert.JSONEq(t, `42`, string(delta["volume"]))
	assert.JSONEq(t, `3`, string(delta["guilds"]))
	_, hasBogus := delta["bogus"]
	assert.False(t, hasBogus)
}

func TestApplyIsAllOrNothing(t *testing.T) {
	s := NewStore()
	_, _, err := s.Apply(patch(t, `{"volume":60}`))
	require.NoError(t, err)

	_, snap, err := s.Apply(patch(t, `{"volume":70,"isPlaying":"yes"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidField)
	assert.Equal(t, 60, snap.Volume)
	assert.Equal(t, 60, s.Snapshot().Volume)
}

func TestApplyRejectsOutOfRangeIntegers(t *testing.T) {
	s := NewStore()
	_, _, err := s.Apply(patch(t, `{"volume":40}`))
	require.NoError(t, err)

	for _, js := range []string{`{"volume":1e300}`, `{"volume":-1e300}`, `{"guilds":"9223372036854775808"}`} {
		delta, _, err := s.Apply(patch(t, js))
		assert.ErrorIs(t, err, ErrInvalidField, js)
		assert.Nil(t, delta, js)
	}
	assert.Equal(t, 40, s.Snapshot().Volume)
}

func TestApplyCurrentSongAndQueue(t *testing.T) {
	s := NewStore()

	_, snap, err := s.Apply(patch(t, `{
		"currentSong": {"title":"Song A","artist":"X","duration":200,"currentTime":12},
		"queue": [{"title":"Song B"},{"title":"Song C","requester":"sam"}]
	}`))
	require.NoError(t, err)
	require.NotNil(t, snap.CurrentSong)
	assert.Equal(t, "Song A", snap.CurrentSong.Title)
	require.NotNil(t, snap.CurrentSong.PositionSeconds)
	assert.Equal(t, 12.0, *snap.CurrentSong.PositionSeconds)
	assert.Len(t, snap.Queue, 2)

	_, snap, err = s.Apply(patch(t, `{"currentSong":null,"queue":null}`))
	require.NoError(t, err)
	assert.Nil(t, snap.CurrentSong)
	assert.NotNil(t, snap.Queue)
	assert.Empty(t, snap.Queue)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	_, _, err := s.Apply(patch(t, `{"queue":[{"title":"one"}]}`))
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Queue[0].Title = "mutated"
	snap.Volume = 1

	assert.Equal(t, "one", s.Snapshot().Queue[0].Title)
	assert.Equal(t, "one", s.Queue()[0].Title)
	assert.Equal(t, types.DefaultVolume, s.Snapshot().Volume)
}

func TestIsKnownField(t *testing.T) {
	assert.True(t, IsKnownField("volume"))
	assert.True(t, IsKnownField("currentSong"))
	assert.False(t, IsKnownField("Volume"))
}
