package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Thin CRUD over the graph the rooms read. A point or edge written here is
// visible to the very next movement validation; rooms cache nothing beyond
// the current message's lookup.

// HandleAdminPoints serves the point collection.
// GET /admin/points            lists all points
// POST /admin/points           upserts one point (JSON body)
// DELETE /admin/points?id=N    removes a point and its transitions
func (s *Server) HandleAdminPoints(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.Graph.Points())
	case http.MethodPost:
		var p Point
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if p.ID == 0 {
			http.Error(w, "missing point id", http.StatusBadRequest)
			return
		}
		s.Graph.PutPoint(p)
		s.Log.Infow("point upserted", "id", p.ID, "cell", [2]int{p.CellQ, p.CellR}, "kind", p.Kind)
		writeJSON(w, map[string]any{"ok": true})
	case http.MethodDelete:
		id, err := queryPointID(r, "id")
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		s.Graph.DeletePoint(id)
		s.Log.Infow("point deleted", "id", id)
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAdminTransitions serves the edge collection.
// GET /admin/transitions                   lists all edges
// POST /admin/transitions                  adds one edge (JSON body)
// DELETE /admin/transitions?from=N&to=M    removes one edge
func (s *Server) HandleAdminTransitions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, s.Graph.Transitions())
	case http.MethodPost:
		var t Transition
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Graph.PutTransition(t); err != nil {
			if errors.Is(err, ErrPointNotFound) {
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.Log.Infow("transition added", "from", t.From, "to", t.To)
		writeJSON(w, map[string]any{"ok": true})
	case http.MethodDelete:
		from, errFrom := queryPointID(r, "from")
		to, errTo := queryPointID(r, "to")
		if errFrom != nil || errTo != nil {
			http.Error(w, "invalid from/to", http.StatusBadRequest)
			return
		}
		s.Graph.DeleteTransition(from, to)
		s.Log.Infow("transition deleted", "from", from, "to", to)
		writeJSON(w, map[string]any{"ok": true})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAdminSave persists the current graph back to the file it loaded from.
// POST /admin/save
func (s *Server) HandleAdminSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.GraphPath == "" {
		http.Error(w, "no graph path configured", http.StatusConflict)
		return
	}
	if err := s.Graph.SaveFile(s.GraphPath); err != nil {
		s.Log.Errorw("graph save failed", "path", s.GraphPath, "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	s.Log.Infow("graph saved", "path", s.GraphPath)
	writeJSON(w, map[string]any{"ok": true})
}

// HandleMetrics reports the registry gauge and per-room counters.
// GET /metrics
func (s *Server) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	rooms := s.Registry.ActiveRooms()
	totalPlayers := 0
	perRoom := make([]map[string]any, 0, len(rooms))
	for _, room := range rooms {
		entry := map[string]any{
			"pointId": room.PointID(),
			"metrics": room.Metrics().Snapshot(),
		}
		if snap, err := room.Snapshot(); err == nil {
			entry["phase"] = snap.Phase
			entry["players"] = len(snap.Players)
			totalPlayers += len(snap.Players)
		}
		perRoom = append(perRoom, entry)
	}
	writeJSON(w, map[string]any{
		"activeRooms":  len(rooms),
		"totalPlayers": totalPlayers,
		"rooms":        perRoom,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func queryPointID(r *http.Request, key string) (PointID, error) {
	n, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return PointID(n), err
}
