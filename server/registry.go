package server

import (
	"sync"

	"go.uber.org/zap"
)

// Registry is the sole owner of live rooms, indexed by point id. Coordinators
// are addressed through it and never cached elsewhere across messages, so a
// terminated room cannot dangle.
type Registry struct {
	graph   GraphStore
	gate    IdentityGate
	log     *zap.SugaredLogger
	roomCap int

	mu    sync.Mutex
	rooms map[PointID]*Room
}

func NewRegistry(graph GraphStore, gate IdentityGate, log *zap.SugaredLogger, roomCap int) *Registry {
	if roomCap <= 0 {
		roomCap = 16
	}
	return &Registry{
		graph:   graph,
		gate:    gate,
		log:     log,
		roomCap: roomCap,
		rooms:   make(map[PointID]*Room),
	}
}

// GetOrCreate returns the live room for pointID, constructing and starting
// one if absent. Check-and-insert runs under one lock, so concurrent callers
// for the same missing point share a single coordinator.
func (reg *Registry) GetOrCreate(pointID PointID) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[pointID]; ok {
		select {
		case <-r.done:
			// Terminated but its removal has not landed yet; replace it.
			delete(reg.rooms, pointID)
		default:
			return r
		}
	}
	r := newRoom(pointID, reg)
	reg.rooms[pointID] = r
	go r.run()
	reg.log.Infow("room created", "point", pointID)
	return r
}

// remove drops the entry for a terminated room. The instance compare keeps a
// late terminate from evicting a successor room for the same point.
func (reg *Registry) remove(pointID PointID, r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[pointID] == r {
		delete(reg.rooms, pointID)
	}
}

// ActiveRooms returns the live rooms, for the metrics endpoint.
func (reg *Registry) ActiveRooms() []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, r)
	}
	return out
}

func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}
