// Package media mirrors what the OS reports as currently playing. Sessions
// arrive as playback events from the system layer; the module keeps a map of
// them and picks the most relevant one when a placeholder is rendered.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
	"github.com/chatterbox-vr/chatterbox/internal/pubsub"
	"github.com/chatterbox-vr/chatterbox/internal/systemlayer"
)

const (
	// sessionCloseTimeout bounds both how long a closed session lingers and
	// how stale an open one may be before the selection skips it.
	sessionCloseTimeout = 60 * time.Second
	sessionSweepEvery   = 5 * time.Second

	lyricsCacheKey = "Chatterbox;MediaModule;LyricsCache"
	lyricsCacheTTL = 48 * time.Hour

	defaultLyricsAPI = "https://lrclib.net/api/get"
)

// Session is one playback source as assembled from system layer events.
// Times are in milliseconds, matching the wire format.
type Session struct {
	ID         string
	UpdatedAt  time.Time
	ClosedAt   time.Time
	FocusedAt  time.Time
	Title      string
	Artist     string
	AlbumTitle string
	Status     string
	Current    int64
	Total      int64
}

type playbackEvent struct {
	ID         string  `json:"Id"`
	Properties payload `json:"Properties"`
}

type payload struct {
	Title          string `json:"Title"`
	Artist         string `json:"Artist"`
	AlbumTitle     string `json:"AlbumTitle"`
	CurrentTime    int64  `json:"CurrentTime"`
	TotalTime      int64  `json:"TotalTime"`
	PlaybackStatus string `json:"PlaybackStatus"`
}

// Dependencies holds the collaborators the media module needs.
type Dependencies struct {
	Store      kvstore.Store
	Resolver   module.Resolver
	Subscriber pubsub.Subscriber

	// LyricsURL overrides the lyrics API endpoint, mainly for tests.
	LyricsURL string
	// Fetcher overrides how lyric payloads are retrieved. Nil uses HTTP.
	Fetcher LyricsFetcher
}

// Module renders media placeholders.
type Module struct {
	*module.Base
	deps Dependencies

	mu        sync.Mutex
	sessions  map[string]*Session
	currentID string

	lyrics       *lyricsClient
	lastLyricKey string
	currentLyric *lyricData

	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// New creates the media module.
func New(deps Dependencies) *Module {
	desc := module.Descriptor{
		ID:          "media",
		Name:        "Media",
		Description: "Media module, used to display media information.",
		Inputs: []module.InputDefinition{
			{
				ID:   "playback_status_text",
				Kind: module.KindKeyValues,
				Name: "Playback Status Text",
				DefaultMap: map[string]string{
					"Stopped": "⏹️",
					"Playing": "▶️",
					"Paused":  "⏸️",
				},
			},
			{
				ID:   "lyric_info_text",
				Kind: module.KindKeyValues,
				Name: "Lyric Info Text",
				DefaultMap: map[string]string{
					"no_lyrics_found": "No lyrics found.",
					"insturmental":    "Instrumental",
					"clear_line":      "",
				},
				KeyDisplayNames: map[string]string{
					"no_lyrics_found": "No Lyrics Found",
					"insturmental":    "Insturmental",
					"clear_line":      "Clear Line",
				},
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "playback_status", Description: "Playback status of the media that formatted by the config."},
			{Placeholder: "title", Description: "Title of the media."},
			{Placeholder: "artist", Description: "Artist of the media."},
			{Placeholder: "current_time", Description: "Current time of the media formatted as mm:ss."},
			{Placeholder: "total_time", Description: "Total time of the media formatted as mm:ss."},
			{Placeholder: "current_lyric_line", Description: "Show the current line of the lyric."},
			{Placeholder: "session_id", Description: "ID of the media is from."},
			{Placeholder: "raw_current_time", Description: "Current time of the media in raw format."},
			{Placeholder: "raw_total_time", Description: "Total time of the media in raw format."},
			{Placeholder: "raw_playback_status", Description: "Playback status of the media in raw format."},
			{Placeholder: "raw_session_id", Description: "ID of the media is from in raw format."},
		},
	}

	m := &Module{
		Base:     module.NewBase(desc, deps.Store, deps.Resolver),
		deps:     deps,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
	m.lyrics = newLyricsClient(deps)
	return m
}

// Init subscribes to playback events, prunes the persisted lyrics cache and
// starts the session sweeper.
func (m *Module) Init(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	if err := m.deps.Subscriber.Subscribe(runCtx, pubsub.TopicSystemLayer, m.handleSystemLayerMessage); err != nil {
		cancel()
		return err
	}

	m.lyrics.pruneCache(ctx)

	go m.sweepSessions(runCtx)
	return nil
}

// Destroy stops the sweeper and the subscription.
func (m *Module) Destroy(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
	return nil
}

func (m *Module) sweepSessions(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(sessionSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := m.now()
			m.mu.Lock()
			for id, session := range m.sessions {
				if !session.ClosedAt.IsZero() && now.Sub(session.ClosedAt) > sessionCloseTimeout {
					delete(m.sessions, id)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Module) handleSystemLayerMessage(ctx context.Context, msg pubsub.Message) error {
	var event systemlayer.Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil
	}

	var data playbackEvent
	if len(event.Data) > 0 {
		if err := json.Unmarshal(event.Data, &data); err != nil {
			slog.Debug("Discarding malformed playback event", "type", event.Type, "error", err)
			return nil
		}
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	switch event.Type {
	case "PlaybackSessionOpened":
		if session, ok := m.sessions[data.ID]; ok {
			session.UpdatedAt = now
			session.ClosedAt = time.Time{}
		} else {
			m.sessions[data.ID] = &Session{ID: data.ID, UpdatedAt: now, Status: "Stopped"}
		}

	case "PlaybackSessionClosed":
		if session, ok := m.sessions[data.ID]; ok {
			session.UpdatedAt = now
			session.ClosedAt = now
			m.currentID = ""
		}

	case "PlaybackSessionFocused":
		if session, ok := m.sessions[data.ID]; ok {
			session.UpdatedAt = now
			session.FocusedAt = now
			m.currentID = data.ID
		}

	case "PlaybackPropertyInfo":
		if session, ok := m.sessions[data.ID]; ok {
			session.UpdatedAt = now
			session.Title = data.Properties.Title
			session.Artist = data.Properties.Artist
			session.AlbumTitle = data.Properties.AlbumTitle
			session.Status = "Playing"
		}

	case "PlaybackPositionInfo":
		if session, ok := m.sessions[data.ID]; ok {
			if session.Current == data.Properties.CurrentTime && session.Total == data.Properties.TotalTime {
				return nil
			}
			session.UpdatedAt = now
			session.Current = data.Properties.CurrentTime
			session.Total = data.Properties.TotalTime
		}

	case "PlaybackStateInfo":
		if session, ok := m.sessions[data.ID]; ok {
			session.UpdatedAt = now
			session.Status = data.Properties.PlaybackStatus
		}
	}
	return nil
}

// ActiveSession picks the session placeholders render from: the most recently
// updated open session, else any playing one, else any focused one, else
// whatever is left. Returns nil when no session exists at all.
func (m *Module) ActiveSession() *Session {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	if len(all) == 0 {
		return nil
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })

	open := make([]*Session, 0, len(all))
	for _, s := range all {
		if s.ClosedAt.IsZero() {
			open = append(open, s)
		}
	}
	for _, s := range open {
		if now.Sub(s.UpdatedAt) < sessionCloseTimeout {
			snapshot := *s
			return &snapshot
		}
	}
	for _, s := range open {
		if s.Status == "Playing" {
			snapshot := *s
			return &snapshot
		}
	}
	for _, s := range open {
		if !s.FocusedAt.IsZero() {
			snapshot := *s
			return &snapshot
		}
	}
	snapshot := *all[0]
	return &snapshot
}

var defaultSession = Session{
	ID:         "Default",
	Title:      "Unknown",
	Artist:     "Unknown",
	AlbumTitle: "Unknown",
	Status:     "Stopped",
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	session := m.ActiveSession()
	if session == nil {
		s := defaultSession
		session = &s
	}

	switch key {
	case "artist":
		return session.Artist, true, nil
	case "album_title":
		return session.AlbumTitle, true, nil
	case "title":
		return session.Title, true, nil
	case "raw_current_time":
		return strconv.FormatInt(session.Current, 10), true, nil
	case "raw_total_time":
		return strconv.FormatInt(session.Total, 10), true, nil
	case "raw_playback_status":
		return session.Status, true, nil
	case "current_time":
		return formatMillis(session.Current), true, nil
	case "total_time":
		return formatMillis(session.Total), true, nil
	case "playback_status":
		texts := m.MapInput("playback_status_text")
		if text, ok := texts[session.Status]; ok && text != "" {
			return text, true, nil
		}
		return session.Status, true, nil
	case "raw_session_id":
		return session.ID, true, nil
	case "session_id":
		if i := strings.Index(session.ID, "!"); i >= 0 {
			return session.ID[i+1:], true, nil
		}
		return session.ID, true, nil
	case "current_lyric_line":
		return m.currentLyricLine(ctx, session), true, nil
	}
	return key, true, nil
}

func (m *Module) currentLyricLine(ctx context.Context, session *Session) string {
	texts := m.MapInput("lyric_info_text")
	lyric := m.fetchCurrentLyric(ctx, session)
	if session.Status != "Playing" {
		return texts["no_lyrics_found"]
	}
	if lyric == nil || len(lyric.SyncedLines) == 0 {
		return texts["no_lyrics_found"]
	}
	if lyric.Instrumental {
		return texts["insturmental"]
	}
	for _, line := range lyric.SyncedLines {
		if line.At >= session.Current {
			if line.Text == "" {
				return texts["clear_line"]
			}
			return line.Text
		}
	}
	return texts["clear_line"]
}

// fetchCurrentLyric memoizes the last lookup so a track change triggers at
// most one fetch per render cycle.
func (m *Module) fetchCurrentLyric(ctx context.Context, session *Session) *lyricData {
	duration := float64(session.Total) / 1000
	cacheKey := fmt.Sprintf("%s;%s;%.2f", session.Title, session.Artist, duration)

	m.mu.Lock()
	if m.lastLyricKey == cacheKey {
		lyric := m.currentLyric
		m.mu.Unlock()
		return lyric
	}
	m.lastLyricKey = cacheKey
	m.mu.Unlock()

	lyric := m.lyrics.fetch(ctx, session.Title, session.Artist, duration)

	m.mu.Lock()
	m.currentLyric = lyric
	m.mu.Unlock()
	return lyric
}
