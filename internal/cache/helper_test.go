package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedThing struct {
	Name string `json:"name"`
}

func TestAside_MissThenHit(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	defer func() { _ = rdb.Close() }()

	ctx := context.Background()
	calls := 0
	fetch := func(dest *cachedThing) func() error {
		return func() error {
			calls++
			dest.Name = "gate"
			return nil
		}
	}

	var first cachedThing
	require.NoError(t, Aside(ctx, rdb, "k", &first, time.Minute, fetch(&first)))
	assert.Equal(t, "gate", first.Name)
	assert.True(t, mr.Exists("k"))

	var second cachedThing
	require.NoError(t, Aside(ctx, rdb, "k", &second, time.Minute, fetch(&second)))
	assert.Equal(t, "gate", second.Name)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	var third cachedThing
	require.NoError(t, Aside(ctx, rdb, "k", &third, time.Minute, fetch(&third)))
	assert.Equal(t, 2, calls)
}

func TestAside_NilClientAlwaysFetches(t *testing.T) {
	var dest cachedThing
	err := Aside(context.Background(), nil, "k", &dest, time.Minute, func() error {
		dest.Name = "direct"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", dest.Name)
}

func TestAside_FetchErrorNotCached(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)

	var dest cachedThing
	boom := errors.New("boom")
	err = Aside(context.Background(), rdb, "k", &dest, time.Minute, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestParticipantKey(t *testing.T) {
	id := uuid.MustParse("0190a6b2-0000-7000-8000-000000000001")
	assert.Equal(t, "participant:0190a6b2-0000-7000-8000-000000000001", ParticipantKey(id))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("redis://localhost:6379/not-a-db")
	assert.Error(t, err)
}
