package client

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPionFactory_OfferAnswer(t *testing.T) {
	answers := make(chan json.RawMessage, 1)
	offers := make(chan json.RawMessage, 1)

	f := PionFactory{Config: webrtc.Configuration{}}

	caller, err := f.NewPeer("callee", true, PeerCallbacks{Signal: func(p json.RawMessage) { offers <- p }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = caller.Close() })

	callee, err := f.NewPeer("caller", false, PeerCallbacks{Signal: func(p json.RawMessage) { answers <- p }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = callee.Close() })

	var offer json.RawMessage
	select {
	case offer = <-offers:
	case <-time.After(10 * time.Second):
		t.Fatal("no offer emitted")
	}
	var desc webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(offer, &desc))
	assert.Equal(t, webrtc.SDPTypeOffer, desc.Type)
	assert.True(t, strings.Contains(desc.SDP, "m=audio"), "offer carries the local audio track")

	require.NoError(t, callee.Signal(offer))

	var answer json.RawMessage
	select {
	case answer = <-answers:
	case <-time.After(10 * time.Second):
		t.Fatal("no answer emitted")
	}
	require.NoError(t, json.Unmarshal(answer, &desc))
	assert.Equal(t, webrtc.SDPTypeAnswer, desc.Type)

	require.NoError(t, caller.Signal(answer))
}

func TestPionPeer_IgnoresUnknownSignal(t *testing.T) {
	p, err := PionFactory{}.NewPeer("x", false, PeerCallbacks{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.NoError(t, p.Signal(json.RawMessage(`{"renegotiate":true}`)))
	assert.Error(t, p.Signal(json.RawMessage(`not json`)))
}

func TestPionPeer_CloseNotifiesOnce(t *testing.T) {
	var calls atomic.Int32
	p, err := PionFactory{}.NewPeer("x", false, PeerCallbacks{Closed: func() { calls.Add(1) }})
	require.NoError(t, err)

	require.NoError(t, p.Close())
	_ = p.Close()
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 10*time.Millisecond)
}
