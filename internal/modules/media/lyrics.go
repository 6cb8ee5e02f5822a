package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
)

var syncedLyricLine = regexp.MustCompile(`^\[([^\]]+)\](.*)`)

// lyricData is the parsed form of one lyrics API response.
type lyricData struct {
	TrackName    string       `json:"trackName"`
	ArtistName   string       `json:"artistName"`
	Instrumental bool         `json:"instrumental"`
	PlainLyrics  string       `json:"plainLyrics"`
	SyncedLines  []syncedLine `json:"syncedLines,omitempty"`
}

// syncedLine is one timed lyric line. At is in milliseconds.
type syncedLine struct {
	At   int64  `json:"at"`
	Text string `json:"text"`
}

type cacheEntry struct {
	At   int64      `json:"at"`
	Data *lyricData `json:"data"`
}

// LyricsFetcher retrieves the raw lyrics payload for a track. A nil payload
// with a nil error means the track has no lyrics.
type LyricsFetcher interface {
	FetchLyrics(ctx context.Context, track, artist string, duration float64) ([]byte, error)
}

type lyricsClient struct {
	store   kvstore.Store
	fetcher LyricsFetcher
	now     func() time.Time
}

func newLyricsClient(deps Dependencies) *lyricsClient {
	fetcher := deps.Fetcher
	if fetcher == nil {
		apiURL := deps.LyricsURL
		if apiURL == "" {
			apiURL = defaultLyricsAPI
		}
		fetcher = &httpFetcher{
			url:    apiURL,
			client: &http.Client{Timeout: 10 * time.Second},
		}
	}
	return &lyricsClient{store: deps.Store, fetcher: fetcher, now: time.Now}
}

// fetch returns lyrics for the track, consulting the persisted cache first.
// Misses are cached too, so an unknown track costs one request per TTL window.
func (c *lyricsClient) fetch(ctx context.Context, track, artist string, duration float64) *lyricData {
	cacheKey := fmt.Sprintf("%s;%s;%.2f", track, artist, duration)

	cache := map[string]cacheEntry{}
	if err := kvstore.GetJSON(ctx, c.store, lyricsCacheKey, &cache); err != nil {
		slog.Warn("Failed to load lyrics cache", "error", err)
		cache = map[string]cacheEntry{}
	}

	entry, ok := cache[cacheKey]
	if ok && c.now().UnixMilli()-entry.At <= lyricsCacheTTL.Milliseconds() {
		return entry.Data
	}

	entry = cacheEntry{At: c.now().UnixMilli()}
	payload, err := c.fetcher.FetchLyrics(ctx, track, artist, duration)
	if err != nil {
		slog.Debug("Lyrics fetch failed", "track", track, "artist", artist, "error", err)
	} else if payload != nil {
		entry.Data = parseLyrics(payload)
	}
	cache[cacheKey] = entry
	if err := kvstore.SetJSON(ctx, c.store, lyricsCacheKey, cache); err != nil {
		slog.Warn("Failed to persist lyrics cache", "error", err)
	}
	return entry.Data
}

// pruneCache drops cache entries older than the TTL. Runs once at startup.
func (c *lyricsClient) pruneCache(ctx context.Context) {
	cache := map[string]cacheEntry{}
	if err := kvstore.GetJSON(ctx, c.store, lyricsCacheKey, &cache); err != nil {
		return
	}
	cutoff := c.now().UnixMilli() - lyricsCacheTTL.Milliseconds()
	changed := false
	for key, entry := range cache {
		if entry.At < cutoff {
			delete(cache, key)
			changed = true
		}
	}
	if !changed {
		return
	}
	if err := kvstore.SetJSON(ctx, c.store, lyricsCacheKey, cache); err != nil {
		slog.Warn("Failed to prune lyrics cache", "error", err)
	}
}

func parseLyrics(payload []byte) *lyricData {
	body := gjson.ParseBytes(payload)
	data := &lyricData{
		TrackName:    body.Get("trackName").String(),
		ArtistName:   body.Get("artistName").String(),
		Instrumental: body.Get("instrumental").Bool(),
		PlainLyrics:  body.Get("plainLyrics").String(),
	}
	if synced := body.Get("syncedLyrics").String(); synced != "" {
		data.SyncedLines = parseSyncedLyrics(synced)
	}
	return data
}

// parseSyncedLyrics turns "[mm:ss.xx] text" lines into timed entries.
func parseSyncedLyrics(raw string) []syncedLine {
	var lines []syncedLine
	for _, line := range strings.Split(raw, "\n") {
		match := syncedLyricLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if match == nil {
			continue
		}
		parts := strings.Split(match[1], ":")
		if len(parts) < 2 {
			continue
		}
		minutes, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			continue
		}
		seconds, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			continue
		}
		at := int64(minutes*60*1000 + seconds*1000)
		lines = append(lines, syncedLine{At: at, Text: strings.TrimSpace(match[2])})
	}
	return lines
}

type httpFetcher struct {
	url    string
	client *http.Client
}

func (f *httpFetcher) FetchLyrics(ctx context.Context, track, artist string, duration float64) ([]byte, error) {
	query := url.Values{
		"track_name":  {track},
		"artist_name": {artist},
		"duration":    {fmt.Sprintf("%.2f", duration)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// formatMillis renders a millisecond position as mm:ss, growing to h:mm:ss
// past an hour.
func formatMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
