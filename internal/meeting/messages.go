package meeting

import "encoding/json"

// Kind is the closed set of inbound room message kinds. Dispatch happens
// through an exhaustive switch on Kind, never on raw strings.
type Kind int

const (
	KindUnknown Kind = iota

	// WebRTC signaling, always addressed to a specific participant.
	KindOffer
	KindAnswer
	KindCandidate
	KindNegotiationNeeded

	// In-room feature messages, broadcast to every other participant.
	KindChat
	KindWhiteboard
	KindWhiteboardClearOwn
	KindReaction
	KindScreenShare
	KindToggleAudio
	KindToggleVideo
	KindMeetingEnd
)

var kindNames = map[string]Kind{
	"offer":                KindOffer,
	"answer":               KindAnswer,
	"candidate":            KindCandidate,
	"negotiation_needed":   KindNegotiationNeeded,
	"chat":                 KindChat,
	"whiteboard":           KindWhiteboard,
	"whiteboard_clear_own": KindWhiteboardClearOwn,
	"reaction":             KindReaction,
	"screen_share":         KindScreenShare,
	"toggle_audio":         KindToggleAudio,
	"toggle_video":         KindToggleVideo,
	"meeting_end":          KindMeetingEnd,
}

// ParseKind maps a wire type string to its Kind. Unrecognized strings map
// to KindUnknown and the frame is ignored.
func ParseKind(s string) Kind {
	if kind, ok := kindNames[s]; ok {
		return kind
	}
	return KindUnknown
}

// IsSignaling reports whether the kind is a WebRTC signaling message.
func (k Kind) IsSignaling() bool {
	switch k {
	case KindOffer, KindAnswer, KindCandidate, KindNegotiationNeeded:
		return true
	default:
		return false
	}
}

// IsFeature reports whether the kind is an in-room feature message.
func (k Kind) IsFeature() bool {
	switch k {
	case KindChat, KindWhiteboard, KindWhiteboardClearOwn, KindReaction,
		KindScreenShare, KindToggleAudio, KindToggleVideo, KindMeetingEnd:
		return true
	default:
		return false
	}
}

// envelope is what travels over the room group. SenderConn lets each
// subscriber skip its own frames; TargetUserID restricts signaling delivery
// to the addressed participant.
type envelope struct {
	SenderConn   string          `json:"sender_conn"`
	TargetUserID string          `json:"target_user_id,omitempty"`
	Frame        json.RawMessage `json:"frame"`
}
