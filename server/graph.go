package server

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// GraphStore is the read-only view rooms use to validate movement. Lookups
// against a missing id fail with ErrPointNotFound; a transport fault fails
// with ErrStoreUnavailable.
type GraphStore interface {
	GetPoint(id PointID) (Point, error)
	TransitionsFrom(from PointID) ([]PointID, error)
	IsTransitionValid(from, to PointID) (bool, error)
}

// MemoryGraph holds points and transitions in memory behind one RWMutex. The
// admin endpoints write to the same instance the rooms read, so an edge
// created mid-session is visible to the next validation with no extra caching.
type MemoryGraph struct {
	mu          sync.RWMutex
	points      map[PointID]Point
	transitions map[PointID]map[PointID]struct{}
}

func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{
		points:      make(map[PointID]Point),
		transitions: make(map[PointID]map[PointID]struct{}),
	}
}

func (g *MemoryGraph) GetPoint(id PointID) (Point, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.points[id]
	if !ok {
		return Point{}, fmt.Errorf("point %d: %w", id, ErrPointNotFound)
	}
	return p, nil
}

func (g *MemoryGraph) TransitionsFrom(from PointID) ([]PointID, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]PointID, 0, len(g.transitions[from]))
	for to := range g.transitions[from] {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (g *MemoryGraph) IsTransitionValid(from, to PointID) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.transitions[from][to]
	return ok, nil
}

// PutPoint inserts or overwrites a point.
func (g *MemoryGraph) PutPoint(p Point) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.points[p.ID] = p
}

// DeletePoint removes a point and every transition touching it.
func (g *MemoryGraph) DeletePoint(id PointID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.points, id)
	delete(g.transitions, id)
	for from, tos := range g.transitions {
		delete(tos, id)
		if len(tos) == 0 {
			delete(g.transitions, from)
		}
	}
}

// PutTransition adds a directed edge. Both endpoints must exist.
func (g *MemoryGraph) PutTransition(t Transition) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.points[t.From]; !ok {
		return fmt.Errorf("transition from %d: %w", t.From, ErrPointNotFound)
	}
	if _, ok := g.points[t.To]; !ok {
		return fmt.Errorf("transition to %d: %w", t.To, ErrPointNotFound)
	}
	tos, ok := g.transitions[t.From]
	if !ok {
		tos = make(map[PointID]struct{})
		g.transitions[t.From] = tos
	}
	tos[t.To] = struct{}{}
	return nil
}

func (g *MemoryGraph) DeleteTransition(from, to PointID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tos, ok := g.transitions[from]; ok {
		delete(tos, to)
		if len(tos) == 0 {
			delete(g.transitions, from)
		}
	}
}

// Points returns all points sorted by id, for the admin listing.
func (g *MemoryGraph) Points() []Point {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Point, 0, len(g.points))
	for _, p := range g.points {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Transitions returns all edges sorted by (from, to).
func (g *MemoryGraph) Transitions() []Transition {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Transition, 0)
	for from, tos := range g.transitions {
		for to := range tos {
			out = append(out, Transition{From: from, To: to})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// graphFile is the on-disk JSON shape shared with the editor tooling.
type graphFile struct {
	Points      []Point      `json:"points"`
	Transitions []Transition `json:"transitions"`
}

// LoadGraphFile reads a graph JSON file into a fresh MemoryGraph.
func LoadGraphFile(path string) (*MemoryGraph, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	var file graphFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse graph file: %w", err)
	}
	g := NewMemoryGraph()
	for _, p := range file.Points {
		g.PutPoint(p)
	}
	for _, t := range file.Transitions {
		if err := g.PutTransition(t); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// SaveFile writes the current graph back out as JSON.
func (g *MemoryGraph) SaveFile(path string) error {
	file := graphFile{Points: g.Points(), Transitions: g.Transitions()}
	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
