package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Command is the closed set of inbound room messages. Decoding yields one
// concrete variant, so dispatch is an exhaustive type switch instead of
// string comparison at every site.
type Command interface{ isCommand() }

// JoinCommand asks for admission to the room serving RequestedPointID.
type JoinCommand struct {
	RequestedPointID PointID
	Credential       string
}

// MoveCommand moves the player to another point inside the current cell.
type MoveCommand struct {
	TargetPointID PointID
}

// TransitionCommand asks to follow a transition edge into another room.
type TransitionCommand struct {
	ToPointID PointID
}

func (JoinCommand) isCommand()       {}
func (MoveCommand) isCommand()       {}
func (TransitionCommand) isCommand() {}

// rawMessage is the wire shape of every inbound frame.
// Examples:
//
//	{"type":"join","requestedPointId":1,"credential":"..."}
//	{"type":"moveToPoint","targetPointId":2}
//	{"type":"transition","toPointId":5}
type rawMessage struct {
	Type             string  `json:"type"`
	RequestedPointID PointID `json:"requestedPointId,omitempty"`
	Credential       string  `json:"credential,omitempty"`
	TargetPointID    PointID `json:"targetPointId,omitempty"`
	ToPointID        PointID `json:"toPointId,omitempty"`
}

// DecodeCommand parses one inbound frame into its command variant.
func DecodeCommand(payload []byte) (Command, error) {
	var raw rawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	switch raw.Type {
	case "join":
		return JoinCommand{RequestedPointID: raw.RequestedPointID, Credential: raw.Credential}, nil
	case "moveToPoint":
		return MoveCommand{TargetPointID: raw.TargetPointID}, nil
	case "transition":
		return TransitionCommand{ToPointID: raw.ToPointID}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", raw.Type)
	}
}

// pointState is the static slice of a point pushed with every snapshot.
type pointState struct {
	X     float64   `json:"x"`
	Y     float64   `json:"y"`
	Kind  PointKind `json:"kind"`
	CellQ int       `json:"cellQ"`
	CellR int       `json:"cellR"`
}

// statePayload is the authoritative full snapshot. Clients must treat it as
// the source of truth; the incremental frames below are advisory.
type statePayload struct {
	Type    string        `json:"type"`
	PointID PointID       `json:"pointId"`
	Point   pointState    `json:"point"`
	Players []PlayerState `json:"players"`
}

func encodeState(point Point, players map[string]*Player) []byte {
	snapshot := make([]PlayerState, 0, len(players))
	for _, p := range players {
		snapshot = append(snapshot, PlayerState{
			SessionID:   p.SessionID,
			DisplayName: p.DisplayName,
			X:           p.X,
			Y:           p.Y,
		})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].SessionID < snapshot[j].SessionID })
	payload := statePayload{
		Type:    "state",
		PointID: point.ID,
		Point:   pointState{X: point.X, Y: point.Y, Kind: point.Kind, CellQ: point.CellQ, CellR: point.CellR},
		Players: snapshot,
	}
	b, _ := json.Marshal(payload)
	return b
}

func encodePlayerJoined(p *Player) []byte {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		PlayerState
	}{Type: "playerJoined", PlayerState: PlayerState{
		SessionID:   p.SessionID,
		DisplayName: p.DisplayName,
		X:           p.X,
		Y:           p.Y,
	}})
	return b
}

func encodePlayerMoved(p *Player) []byte {
	b, _ := json.Marshal(struct {
		Type      string  `json:"type"`
		SessionID string  `json:"sessionId"`
		X         float64 `json:"x"`
		Y         float64 `json:"y"`
	}{Type: "playerMoved", SessionID: p.SessionID, X: p.X, Y: p.Y})
	return b
}

func encodePlayerLeft(sessionID string) []byte {
	b, _ := json.Marshal(struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
	}{Type: "playerLeft", SessionID: sessionID})
	return b
}

func encodeJoinNewRoom(to PointID) []byte {
	b, _ := json.Marshal(struct {
		Type    string  `json:"type"`
		PointID PointID `json:"pointId"`
	}{Type: "joinNewRoom", PointID: to})
	return b
}

func encodeError(err error) []byte {
	kind := KindOf(err)
	msg := "internal error"
	var re *RoomError
	if errors.As(err, &re) {
		msg = re.Message
	}
	if kind == "" {
		// Internal faults never expose their text on the wire.
		kind = KindStoreUnavailable
	}
	b, _ := json.Marshal(struct {
		Type      string    `json:"type"`
		ErrorKind ErrorKind `json:"errorKind"`
		Message   string    `json:"message"`
	}{Type: "error", ErrorKind: kind, Message: msg})
	return b
}
