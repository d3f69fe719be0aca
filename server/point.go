package server

// PointID addresses a static map location.
type PointID int64

// PointKind classifies a point on the map.
type PointKind string

const (
	KindOrdinary      PointKind = "ordinary"
	KindTransitionHub PointKind = "transition-hub"
	KindAnomaly       PointKind = "anomaly"
	KindFactionHub    PointKind = "faction-hub"
)

// Point is a static addressable location: a parent grid cell plus local
// coordinates within that cell. The core reads points; only the admin
// endpoints mutate them.
type Point struct {
	ID    PointID   `json:"id"`
	CellQ int       `json:"cellQ"`
	CellR int       `json:"cellR"`
	Kind  PointKind `json:"kind"`
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
}

// SameCell reports whether two points share one grid cell. Movement inside a
// cell needs no transition edge.
func SameCell(a, b Point) bool {
	return a.CellQ == b.CellQ && a.CellR == b.CellR
}

// Transition is a directed edge permitting movement between the rooms of two
// points.
type Transition struct {
	From PointID `json:"fromPointId"`
	To   PointID `json:"toPointId"`
}

// Player is the ephemeral in-room record for one admitted connection. It is
// created on admission, mutated only by the owning room's goroutine, and
// discarded on disconnect or transition; it never moves between rooms.
type Player struct {
	SessionID   string
	IdentityID  string
	DisplayName string
	X, Y        float64

	conn Pusher
}

// PlayerState is the wire snapshot of one player.
type PlayerState struct {
	SessionID   string  `json:"sessionId"`
	DisplayName string  `json:"displayName"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}
