package forum

// Client to server events.
const (
	EventJoinRoom  = "joinRoom"
	EventLeaveRoom = "leaveRoom"
)

// Server to client events. EventMessage is used in both directions.
const (
	EventRoomUserCount = "roomUserCount"
	EventUserJoined    = "userJoined"
	EventMessage       = "message"
)

// Event is a named notification delivered to a participant.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data"`
}

type RoomUserCount struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}

type UserJoined struct {
	UserID ParticipantID `json:"userId"`
	Room   string        `json:"room"`
}

type Message struct {
	UserID  ParticipantID `json:"userId"`
	Room    string        `json:"room"`
	Message string        `json:"message"`
}
