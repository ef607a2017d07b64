package forum

// Observer is notified about coordinator activity. Calls are made while the
// coordinator lock is held and must not call back into the coordinator.
type Observer interface {
	ParticipantConnected()
	ParticipantDisconnected()
	RoomSize(room string, count int)
	MessageSent(room string, recipients int)
}

type nopObserver struct{}

func (nopObserver) ParticipantConnected()    {}
func (nopObserver) ParticipantDisconnected() {}
func (nopObserver) RoomSize(string, int)     {}
func (nopObserver) MessageSent(string, int)  {}
