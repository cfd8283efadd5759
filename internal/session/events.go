package session

import (
	"github.com/BioHazard786/multiplay/internal/signaling"
	pion "github.com/pion/webrtc/v4"
)

// event is anything the engine goroutine processes. Events produced by
// asynchronous sources carry the generation they belong to; the engine drops
// events from earlier generations.
type event any

type (
	cmdCreate     struct{}
	cmdJoin       struct{ code string }
	cmdDisconnect struct{}
	cmdStop       struct{}
)

type (
	evDialed struct {
		gen       uint64
		transport Transport
		err       error
	}

	evEnvelope struct {
		gen uint64
		env *signaling.Envelope
	}

	evTransportClosed struct {
		gen uint64
		err error
	}

	evLocalCandidate struct {
		gen       uint64
		candidate pion.ICECandidateInit
	}

	evPeerState struct {
		gen   uint64
		state pion.PeerConnectionState
	}

	evRemoteChannel struct {
		gen     uint64
		channel *Channel
	}

	evChannelOpen struct {
		gen uint64
	}

	evChannelClosed struct {
		gen uint64
	}

	evTimeout struct {
		gen   uint64
		state State
	}
)
