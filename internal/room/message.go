package room

import "encoding/json"

// Message types exchanged over a room connection.
const (
	MessageSync      = "sync"      // carries an encoded document update
	MessageAwareness = "awareness" // client advertises its active tab
	MessagePresence  = "presence"  // server pushes tab viewer counts
)

// Message is the JSON envelope for room traffic. Update bytes travel
// base64-encoded through the standard []byte JSON encoding.
type Message struct {
	Type      string      `json:"type"`
	Update    []byte      `json:"update,omitempty"`
	ActiveTab int         `json:"activeTab,omitempty"`
	Counts    map[int]int `json:"counts,omitempty"`
}

func (m Message) encode() []byte {
	buf, err := json.Marshal(m)
	if err != nil {
		// all fields are plain values, marshal cannot fail
		panic(err)
	}
	return buf
}

// Conn is one client attached to a room. Send must not block the
// caller; a consumer that cannot keep up is closed instead of losing
// frames, so the client reconnects for a fresh full state.
type Conn interface {
	ID() string
	Send(msg []byte)
	Close()
}
