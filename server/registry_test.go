package server

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	reg := testRegistry(testGraph(), defaultGate(), 16)

	a := reg.GetOrCreate(1)
	b := reg.GetOrCreate(1)
	assert.Same(t, a, b)
	assert.Equal(t, 1, reg.Len())
}

func TestGetOrCreateConcurrent(t *testing.T) {
	// N racing callers for the same missing point must share exactly one
	// coordinator.
	reg := testRegistry(testGraph(), defaultGate(), 16)

	const n = 32
	rooms := make([]*Room, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			rooms[i] = reg.GetOrCreate(7)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, rooms[0], rooms[i])
	}
	assert.Equal(t, 1, reg.Len())
}

func TestGetOrCreateReplacesTerminatedRoom(t *testing.T) {
	reg := testRegistry(testGraph(), defaultGate(), 16)
	room := reg.GetOrCreate(1)
	require.NoError(t, room.Admit(context.Background(), &capturePusher{}, "s1", "tok-alice", 1))
	room.Leave("s1")
	waitDone(t, room)

	next := reg.GetOrCreate(1)
	require.NotSame(t, room, next)
	require.NoError(t, next.Admit(context.Background(), &capturePusher{}, "s1", "tok-alice", 1))
}

func TestRemoveComparesInstances(t *testing.T) {
	reg := testRegistry(testGraph(), defaultGate(), 16)
	old := reg.GetOrCreate(1)
	reg.remove(1, old)
	successor := reg.GetOrCreate(1)

	// A late remove from the dead room must not evict its successor.
	reg.remove(1, old)
	assert.Same(t, successor, reg.GetOrCreate(1))
}
