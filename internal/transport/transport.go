// Package transport delivers resolved chatbox text to the VR client.
// Length-limiting lives here, not in the resolver: the wire protocol caps the
// broadcast field, templates don't.
package transport

// Transport is the outbound side of the chatbox.
type Transport interface {
	// Send broadcasts text to the chatbox. The egg flag suppresses the
	// client-side notification sound.
	Send(text string, egg bool) error

	// Fill places text into the in-game keyboard without sending it.
	Fill(text string) error

	// ToggleTyping drives the chatbox typing indicator.
	ToggleTyping(active bool) error

	Close() error
}
