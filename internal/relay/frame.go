package relay

import "encoding/json"

// Frame is the relay wire format. Clients register an identity on
// connect, then dial peers and exchange opaque data frames; the relay
// only forwards, it never inspects the payload.
type Frame struct {
	Type   FrameType       `json:"type"`
	From   string          `json:"from,omitempty"`
	To     string          `json:"to,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type FrameType string

const (
	// FrameRegistered confirms the identity requested on connect.
	FrameRegistered FrameType = "registered"
	// FrameDial asks the relay to link the sender with To.
	FrameDial FrameType = "dial"
	// FrameOpen notifies both ends that a link is established.
	FrameOpen FrameType = "open"
	// FrameData carries one payload between linked identities.
	FrameData FrameType = "data"
	// FrameClose tears down a link; also sent when a peer disconnects.
	FrameClose FrameType = "close"
	// FrameDialFailed reports a dial to a nonexistent identity.
	FrameDialFailed FrameType = "dial-failed"
	// FrameError reports a registration failure before disconnect.
	FrameError FrameType = "error"
)

// Reasons carried on error and dial-failed frames.
const (
	ReasonIdentityTaken   = "identity taken"
	ReasonUnknownIdentity = "unknown identity"
)
