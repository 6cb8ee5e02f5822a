package pubsub

// Topic names used across the application. Modules subscribe to these to
// receive external events between placeholder resolutions.
const (
	// TopicSystemLayer carries raw {Type, Data} events from the OS helper
	// process: playback sessions, activity transitions, and so on.
	TopicSystemLayer = "system.layer.message"

	// TopicNotice carries user-visible notices (e.g. a runaway template
	// being suppressed) for whatever shell is attached to display.
	TopicNotice = "chatbox.notice"

	// TopicAFKState is published by the afk module on state transitions.
	TopicAFKState = "afk.state_changed"

	// TopicTranscript carries speech-to-text results.
	TopicTranscript = "stt.transcript"
)
