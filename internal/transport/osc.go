package transport

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/hypebeast/go-osc/osc"
)

// maxChatboxRunes is the VR client's chatbox field limit. Longer text is
// truncated before transmission.
const maxChatboxRunes = 144

const (
	addrInput  = "/chatbox/input"
	addrTyping = "/chatbox/typing"
)

// OSCTransport sends chatbox messages to the VR client over OSC/UDP.
type OSCTransport struct {
	client *osc.Client
}

// NewOSC creates a transport targeting addr ("host:port").
func NewOSC(addr string) (*OSCTransport, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid OSC address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid OSC port %q: %w", portStr, err)
	}
	return &OSCTransport{client: osc.NewClient(host, port)}, nil
}

// Send implements Transport. Text is sent straight to the chatbox, bypassing
// the in-game keyboard.
func (t *OSCTransport) Send(text string, egg bool) error {
	msg := osc.NewMessage(addrInput)
	msg.Append(truncate(text))
	msg.Append(true) // bypass keyboard
	msg.Append(!egg) // notification sound
	if err := t.client.Send(msg); err != nil {
		return fmt.Errorf("send chatbox input: %w", err)
	}
	return nil
}

// Fill implements Transport: the text lands in the keyboard for the user to
// review before sending.
func (t *OSCTransport) Fill(text string) error {
	msg := osc.NewMessage(addrInput)
	msg.Append(truncate(text))
	msg.Append(false)
	msg.Append(false)
	if err := t.client.Send(msg); err != nil {
		return fmt.Errorf("fill chatbox input: %w", err)
	}
	return nil
}

// ToggleTyping implements Transport.
func (t *OSCTransport) ToggleTyping(active bool) error {
	msg := osc.NewMessage(addrTyping)
	msg.Append(active)
	if err := t.client.Send(msg); err != nil {
		return fmt.Errorf("toggle typing: %w", err)
	}
	return nil
}

// Close implements Transport. The OSC client is connectionless; nothing to
// release.
func (t *OSCTransport) Close() error { return nil }

func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxChatboxRunes {
		return text
	}
	slog.Debug("Truncating chatbox text", "length", len(runes), "limit", maxChatboxRunes)
	return string(runes[:maxChatboxRunes])
}
