package meeting

import "errors"

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomCompleted  = errors.New("meeting is completed")
	ErrNotParticipant = errors.New("user is not a participant of this meeting")
)
