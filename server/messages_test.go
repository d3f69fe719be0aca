package server

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCommandVariants(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"join","requestedPointId":7,"credential":"tok"}`))
	require.NoError(t, err)
	join, ok := cmd.(JoinCommand)
	require.True(t, ok)
	assert.EqualValues(t, 7, join.RequestedPointID)
	assert.Equal(t, "tok", join.Credential)

	cmd, err = DecodeCommand([]byte(`{"type":"moveToPoint","targetPointId":2}`))
	require.NoError(t, err)
	move, ok := cmd.(MoveCommand)
	require.True(t, ok)
	assert.EqualValues(t, 2, move.TargetPointID)

	cmd, err = DecodeCommand([]byte(`{"type":"transition","toPointId":5}`))
	require.NoError(t, err)
	tr, ok := cmd.(TransitionCommand)
	require.True(t, ok)
	assert.EqualValues(t, 5, tr.ToPointID)
}

func TestDecodeCommandRejectsUnknownAndMalformed(t *testing.T) {
	_, err := DecodeCommand([]byte(`{"type":"fly"}`))
	assert.Error(t, err)

	_, err = DecodeCommand([]byte(`{"type":`))
	assert.Error(t, err)
}

func TestEncodeErrorCarriesKind(t *testing.T) {
	frame := encodeError(roomErrf(KindInvalidTransition, "no transition 2 -> 9"))
	var m map[string]any
	require.NoError(t, json.Unmarshal(frame, &m))
	assert.Equal(t, "error", m["type"])
	assert.Equal(t, string(KindInvalidTransition), m["errorKind"])
	assert.Equal(t, "no transition 2 -> 9", m["message"])
}

func TestEncodeErrorHidesInternalText(t *testing.T) {
	frame := encodeError(errors.New("dial tcp 10.0.0.3: connection refused"))
	var m map[string]any
	require.NoError(t, json.Unmarshal(frame, &m))
	assert.Equal(t, string(KindStoreUnavailable), m["errorKind"])
	assert.Equal(t, "internal error", m["message"])
}
