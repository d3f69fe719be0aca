package server

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// roomPhase is the coordinator lifecycle. Draining exists only transiently:
// it collapses into Terminated in the same step, with no grace period, so a
// reconnecting client re-creates the room.
type roomPhase int

const (
	phaseInitializing roomPhase = iota
	phaseActive
	phaseDraining
	phaseTerminated
)

func (p roomPhase) String() string {
	switch p {
	case phaseInitializing:
		return "initializing"
	case phaseActive:
		return "active"
	case phaseDraining:
		return "draining"
	case phaseTerminated:
		return "terminated"
	}
	return "unknown"
}

// Pusher is the send half of an admitted connection. Writes must not block;
// a slow consumer drops frames rather than stalling the room.
type Pusher interface {
	Enqueue(b []byte)
}

// roomCommand is the closed set of messages a room's run goroutine processes.
type roomCommand interface{ isRoomCommand() }

type admitRequest struct {
	ctx              context.Context
	conn             Pusher
	sessionID        string
	credential       string
	requestedPointID PointID
	reply            chan error
}

type moveRequest struct {
	sessionID     string
	targetPointID PointID
	reply         chan error
}

type transitionRequest struct {
	sessionID string
	toPointID PointID
	reply     chan error
}

type leaveRequest struct {
	sessionID string
}

type pointLoaded struct {
	point Point
	err   error
}

type snapshotRequest struct {
	reply chan RoomSnapshot
}

func (admitRequest) isRoomCommand()      {}
func (moveRequest) isRoomCommand()       {}
func (transitionRequest) isRoomCommand() {}
func (leaveRequest) isRoomCommand()      {}
func (pointLoaded) isRoomCommand()       {}
func (snapshotRequest) isRoomCommand()   {}

// RoomSnapshot is a read-only copy of a room's state, for metrics and tests.
type RoomSnapshot struct {
	PointID PointID
	Phase   string
	Point   Point
	Players []PlayerState
}

// Room is the authoritative coordinator for one point. Everything below the
// "run-goroutine state" marker is owned by the run goroutine; all other
// goroutines talk to the room through the command channel, which serializes
// mutations in arrival order.
type Room struct {
	pointID PointID

	graph        GraphStore
	gate         IdentityGate
	registry     *Registry
	log          *zap.SugaredLogger
	metrics      *RoomMetrics
	maxOccupancy int

	commands chan roomCommand
	done     chan struct{}

	// run-goroutine state
	phase         roomPhase
	point         Point
	players       map[string]*Player
	pendingAdmits []admitRequest
}

func newRoom(pointID PointID, reg *Registry) *Room {
	return &Room{
		pointID:      pointID,
		graph:        reg.graph,
		gate:         reg.gate,
		registry:     reg,
		log:          reg.log.With("point", pointID),
		metrics:      &RoomMetrics{},
		maxOccupancy: reg.roomCap,
		commands:     make(chan roomCommand, 64),
		done:         make(chan struct{}),
		phase:        phaseInitializing,
		players:      make(map[string]*Player),
	}
}

func (r *Room) PointID() PointID { return r.pointID }

// Done is closed when the room reaches Terminated.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) Metrics() *RoomMetrics { return r.metrics }

func (r *Room) staleErr() *RoomError {
	return roomErrf(KindStaleRoom, "room for point %d is gone, rejoin", r.pointID)
}

// submit hands a command to the run goroutine, failing fast once the room has
// terminated.
func (r *Room) submit(c roomCommand) error {
	select {
	case r.commands <- c:
		return nil
	case <-r.done:
		r.metrics.IncStaleDrops()
		return r.staleErr()
	}
}

// await waits for the run goroutine's reply. A command can both succeed and
// terminate the room (last leave, last transition), so a buffered reply beats
// the done signal.
func (r *Room) await(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return r.staleErr()
		}
	}
}

// Admit authenticates the credential and inserts a player for sessionID,
// then pushes the full room state to every occupant. During Initializing the
// request is queued until the point load settles.
func (r *Room) Admit(ctx context.Context, conn Pusher, sessionID, credential string, requestedPointID PointID) error {
	reply := make(chan error, 1)
	req := admitRequest{
		ctx:              ctx,
		conn:             conn,
		sessionID:        sessionID,
		credential:       credential,
		requestedPointID: requestedPointID,
		reply:            reply,
	}
	if err := r.submit(req); err != nil {
		return err
	}
	return r.await(reply)
}

// Move relocates the player to another point inside the room's cell.
func (r *Room) Move(sessionID string, targetPointID PointID) error {
	reply := make(chan error, 1)
	if err := r.submit(moveRequest{sessionID: sessionID, targetPointID: targetPointID, reply: reply}); err != nil {
		return err
	}
	return r.await(reply)
}

// RequestTransition validates the edge, removes the player from this room,
// and answers the originating connection with a joinNewRoom frame.
func (r *Room) RequestTransition(sessionID string, toPointID PointID) error {
	reply := make(chan error, 1)
	if err := r.submit(transitionRequest{sessionID: sessionID, toPointID: toPointID, reply: reply}); err != nil {
		return err
	}
	return r.await(reply)
}

// Leave removes the player. Safe to call any number of times, including after
// the room terminated; a disconnect and an explicit leave may race.
func (r *Room) Leave(sessionID string) {
	_ = r.submit(leaveRequest{sessionID: sessionID})
}

// Snapshot returns a copy of the current room state.
func (r *Room) Snapshot() (RoomSnapshot, error) {
	reply := make(chan RoomSnapshot, 1)
	if err := r.submit(snapshotRequest{reply: reply}); err != nil {
		return RoomSnapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-r.done:
		select {
		case snap := <-reply:
			return snap, nil
		default:
			return RoomSnapshot{}, r.staleErr()
		}
	}
}

// run owns the room state. One command at a time, in arrival order; the only
// blocking calls (gate, graph) happen before any mutation, and there is no
// suspension between a mutation and its broadcast.
func (r *Room) run() {
	go func() {
		p, err := r.graph.GetPoint(r.pointID)
		select {
		case r.commands <- pointLoaded{point: p, err: err}:
		case <-r.done:
		}
	}()
	for {
		cmd := <-r.commands
		switch c := cmd.(type) {
		case pointLoaded:
			r.onPointLoaded(c)
		case admitRequest:
			r.onAdmit(c)
		case moveRequest:
			c.reply <- r.onMove(c)
		case transitionRequest:
			c.reply <- r.onTransition(c)
		case leaveRequest:
			r.onLeave(c.sessionID)
		case snapshotRequest:
			c.reply <- r.snapshotLocked()
		}
		if r.phase == phaseTerminated {
			return
		}
	}
}

func (r *Room) snapshotLocked() RoomSnapshot {
	snap := RoomSnapshot{PointID: r.pointID, Phase: r.phase.String(), Point: r.point}
	for _, p := range r.players {
		snap.Players = append(snap.Players, PlayerState{
			SessionID:   p.SessionID,
			DisplayName: p.DisplayName,
			X:           p.X,
			Y:           p.Y,
		})
	}
	return snap
}

func (r *Room) onPointLoaded(c pointLoaded) {
	if c.err != nil {
		kind := KindPointLoadFailed
		if errors.Is(c.err, ErrStoreUnavailable) {
			kind = KindStoreUnavailable
		}
		rejection := roomErrf(kind, "load point %d: %v", r.pointID, c.err)
		for _, a := range r.pendingAdmits {
			r.metrics.IncRejected()
			a.reply <- rejection
		}
		r.pendingAdmits = nil
		r.log.Warnw("point load failed, room tearing down", "error", c.err)
		r.terminate()
		return
	}
	r.point = c.point
	r.phase = phaseActive
	pending := r.pendingAdmits
	r.pendingAdmits = nil
	for _, a := range pending {
		r.onAdmit(a)
	}
}

func (r *Room) onAdmit(a admitRequest) {
	switch r.phase {
	case phaseInitializing:
		r.pendingAdmits = append(r.pendingAdmits, a)
		return
	case phaseActive:
	default:
		a.reply <- r.staleErr()
		return
	}
	profile, err := r.gate.Authenticate(a.ctx, a.credential)
	if err != nil {
		r.rejectAdmit(a, err)
		return
	}
	if profile.Banned {
		r.rejectAdmit(a, roomErrf(KindForbidden, "identity %s is banned", profile.IdentityID))
		return
	}
	if a.requestedPointID != r.pointID {
		// Stale client routing; the client must look the room up again.
		r.rejectAdmit(a, roomErrf(KindWrongRoom, "room serves point %d, not %d", r.pointID, a.requestedPointID))
		return
	}
	if _, present := r.players[a.sessionID]; !present && len(r.players) >= r.maxOccupancy {
		r.rejectAdmit(a, roomErrf(KindRoomFull, "room for point %d is at capacity (%d)", r.pointID, r.maxOccupancy))
		return
	}
	// A duplicate admit for a live session overwrites rather than duplicating.
	// New players spawn at the point's own coordinates, wherever they came from.
	p := &Player{
		SessionID:   a.sessionID,
		IdentityID:  profile.IdentityID,
		DisplayName: profile.DisplayName,
		X:           r.point.X,
		Y:           r.point.Y,
		conn:        a.conn,
	}
	r.players[a.sessionID] = p
	r.metrics.IncAdmitted()
	r.log.Infow("player admitted", "session", a.sessionID, "identity", profile.IdentityID, "occupancy", len(r.players))
	r.broadcastExcept(encodePlayerJoined(p), a.sessionID)
	r.broadcast(encodeState(r.point, r.players))
	a.reply <- nil
}

// rejectAdmit refuses one admission. A room whose last (or only) admission
// attempt failed holds no players and tears down like any other empty room;
// the rejected client's retry re-creates it.
func (r *Room) rejectAdmit(a admitRequest, err error) {
	r.metrics.IncRejected()
	a.reply <- err
	if r.phase == phaseActive && len(r.players) == 0 {
		r.drain()
	}
}

func (r *Room) onMove(c moveRequest) error {
	p, ok := r.players[c.sessionID]
	if !ok {
		// The session already left; a leave and an in-flight move can race.
		return nil
	}
	target, err := r.graph.GetPoint(c.targetPointID)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return roomErrf(KindStoreUnavailable, "lookup point %d: try again", c.targetPointID)
		}
		return roomErrf(KindInvalidTarget, "no point %d", c.targetPointID)
	}
	if !SameCell(r.point, target) {
		return roomErrf(KindInvalidTarget, "point %d is outside cell (%d,%d)", c.targetPointID, r.point.CellQ, r.point.CellR)
	}
	p.X, p.Y = target.X, target.Y
	r.metrics.IncMoves()
	r.broadcast(encodePlayerMoved(p))
	r.broadcast(encodeState(r.point, r.players))
	return nil
}

func (r *Room) onTransition(c transitionRequest) error {
	p, ok := r.players[c.sessionID]
	if !ok {
		return nil
	}
	valid, err := r.graph.IsTransitionValid(r.pointID, c.toPointID)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			return roomErrf(KindStoreUnavailable, "validate transition: try again")
		}
		return roomErrf(KindInvalidTransition, "no transition %d -> %d", r.pointID, c.toPointID)
	}
	if !valid {
		return roomErrf(KindInvalidTransition, "no transition %d -> %d", r.pointID, c.toPointID)
	}
	delete(r.players, c.sessionID)
	r.metrics.IncTransitions()
	r.broadcast(encodePlayerLeft(c.sessionID))
	r.broadcast(encodeState(r.point, r.players))
	// Direct response to the mover only; the destination room admits it as a
	// brand-new player on rejoin.
	p.conn.Enqueue(encodeJoinNewRoom(c.toPointID))
	r.log.Infow("player transitioned", "session", c.sessionID, "to", c.toPointID)
	if len(r.players) == 0 {
		r.drain()
	}
	return nil
}

func (r *Room) onLeave(sessionID string) {
	if _, ok := r.players[sessionID]; !ok {
		return
	}
	delete(r.players, sessionID)
	r.metrics.IncLeaves()
	r.broadcast(encodePlayerLeft(sessionID))
	r.log.Infow("player left", "session", sessionID, "occupancy", len(r.players))
	if len(r.players) == 0 {
		r.drain()
		return
	}
	r.broadcast(encodeState(r.point, r.players))
}

// drain runs when the player map empties. No timer, no grace period: the
// room terminates now and the registry entry goes with it.
func (r *Room) drain() {
	r.phase = phaseDraining
	r.terminate()
}

func (r *Room) terminate() {
	r.phase = phaseTerminated
	// Deregister before signalling done so nobody can observe a terminated
	// room still listed in the registry.
	r.registry.remove(r.pointID, r)
	close(r.done)
	r.log.Infow("room terminated")
}

func (r *Room) broadcast(frame []byte) {
	r.metrics.IncBroadcasts()
	for _, p := range r.players {
		p.conn.Enqueue(frame)
	}
}

func (r *Room) broadcastExcept(frame []byte, skipSessionID string) {
	if len(r.players) == 0 {
		return
	}
	sent := false
	for id, p := range r.players {
		if id == skipSessionID {
			continue
		}
		p.conn.Enqueue(frame)
		sent = true
	}
	if sent {
		r.metrics.IncBroadcasts()
	}
}
