// Package broadcast keeps independent session stores of the same operator
// converged, the way the admin portal keeps browser tabs in sync. Delivery is
// best-effort and at-most-once: a slow or absent subscriber never blocks a
// publisher, and an environment without broadcast support can run on the Noop
// channel with no behavioral change inside a single store.
package broadcast

// MessageType discriminates the two auth broadcast shapes.
type MessageType string

const (
	// TypeTokenRefreshed is sent after any successful login or refresh.
	TypeTokenRefreshed MessageType = "TOKEN_REFRESHED"
	// TypeLogout is sent after any logout or auth clear.
	TypeLogout MessageType = "LOGOUT"
)

// Message is one auth broadcast. Token fields are only set for
// TypeTokenRefreshed.
type Message struct {
	Type         MessageType `json:"type"`
	AccessToken  string      `json:"accessToken,omitempty"`
	RefreshToken string      `json:"refreshToken,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"`
}

// Channel is the broadcast/subscribe primitive a session store publishes its
// state transitions through.
type Channel interface {
	// Publish sends msg to every other subscriber on the same channel.
	// The sender never receives its own message.
	Publish(msg Message)

	// OnMessage registers the handler invoked for each received message.
	// Messages are delivered one at a time in receipt order.
	OnMessage(handler func(Message))

	// Close detaches from the channel and stops delivery.
	Close() error
}

// Noop is a Channel for environments without broadcast support. All calls
// are no-ops; a store using it still functions correctly on its own.
type Noop struct{}

func (Noop) Publish(Message)         {}
func (Noop) OnMessage(func(Message)) {}
func (Noop) Close() error            { return nil }

var _ Channel = Noop{}
