package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// PeerCallbacks connect a peer link back to its session.
type PeerCallbacks struct {
	// Signal hands a negotiation payload to the gateway for the remote peer.
	Signal func(payload json.RawMessage)
	// Closed reports that the link failed or was closed.
	Closed func()
}

// PeerLink is one direct audio link to a remote participant.
type PeerLink interface {
	// Signal applies a payload relayed from the remote peer.
	Signal(payload json.RawMessage) error
	Close() error
}

type PeerFactory interface {
	NewPeer(remoteID string, initiator bool, cb PeerCallbacks) (PeerLink, error)
}

// PionFactory builds pion/webrtc peer links carrying one local audio track.
// Nothing is ever written to the track, so the microphone starts muted.
type PionFactory struct {
	Config webrtc.Configuration
}

type pionPeer struct {
	remote string
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	cb     PeerCallbacks

	closeOnce sync.Once
}

// signalPayload covers the shapes browsers send: a session description
// {type, sdp} or a trickled {candidate: {...}}.
type signalPayload struct {
	Type      string                   `json:"type"`
	SDP       string                   `json:"sdp"`
	Candidate *webrtc.ICECandidateInit `json:"candidate"`
}

func (f PionFactory) NewPeer(remoteID string, initiator bool, cb PeerCallbacks) (PeerLink, error) {
	pc, err := webrtc.NewPeerConnection(f.Config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"groupwatch",
	)
	if err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("new local audio track: %w", err)
	}
	if _, err = pc.AddTrack(track); err != nil {
		_ = pc.Close()
		return nil, fmt.Errorf("add local audio track: %w", err)
	}

	p := &pionPeer{remote: remoteID, pc: pc, track: track, cb: cb}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "client").Str("peer", remoteID).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			p.closed()
		}
	})
	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "client").
			Str("peer", remoteID).
			Str("kind", remote.Kind().String()).
			Str("track_id", remote.ID()).
			Msg("remote track")
		go drainTrack(remoteID, remote)
	})

	if initiator {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			_ = pc.Close()
			return nil, fmt.Errorf("create offer: %w", err)
		}
		if err := p.setLocal(offer); err != nil {
			_ = pc.Close()
			return nil, err
		}
	}
	return p, nil
}

// drainTrack reads remote audio until the track ends. Playback is left to
// the host application; the first packet is logged to confirm media flows.
func drainTrack(peer string, remote *webrtc.TrackRemote) {
	var first *rtp.Packet
	for {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if first == nil {
			first = pkt
			log.Debug().
				Str("module", "client").
				Str("peer", peer).
				Uint32("ssrc", first.SSRC).
				Uint8("payload_type", first.PayloadType).
				Msg("first rtp packet")
		}
	}
}

// setLocal applies a local description and emits it once ICE gathering is
// complete, so the remote side gets every candidate in one payload.
func (p *pionPeer) setLocal(desc webrtc.SessionDescription) error {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	go func() {
		<-gatherComplete
		local := p.pc.LocalDescription()
		if local == nil {
			return
		}
		b, err := json.Marshal(local)
		if err != nil {
			log.Error().Err(err).Str("module", "client").Str("peer", p.remote).Msg("marshal local description")
			return
		}
		if p.cb.Signal != nil {
			p.cb.Signal(b)
		}
	}()
	return nil
}

func (p *pionPeer) Signal(payload json.RawMessage) error {
	var sig signalPayload
	if err := json.Unmarshal(payload, &sig); err != nil {
		return fmt.Errorf("decode signal: %w", err)
	}

	switch {
	case sig.Candidate != nil:
		return p.pc.AddICECandidate(*sig.Candidate)
	case sig.Type == webrtc.SDPTypeOffer.String():
		if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sig.SDP}); err != nil {
			return fmt.Errorf("set remote offer: %w", err)
		}
		answer, err := p.pc.CreateAnswer(nil)
		if err != nil {
			return fmt.Errorf("create answer: %w", err)
		}
		return p.setLocal(answer)
	case sig.Type == webrtc.SDPTypeAnswer.String():
		if err := p.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sig.SDP}); err != nil {
			return fmt.Errorf("set remote answer: %w", err)
		}
		return nil
	default:
		log.Debug().Str("module", "client").Str("peer", p.remote).Str("type", sig.Type).Msg("ignored signal")
		return nil
	}
}

func (p *pionPeer) closed() {
	p.closeOnce.Do(func() {
		if p.cb.Closed != nil {
			p.cb.Closed()
		}
	})
}

func (p *pionPeer) Close() error {
	err := p.pc.Close()
	p.closed()
	return err
}
