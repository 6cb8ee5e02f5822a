// Package httpfetch lets templates splice in data from arbitrary HTTP
// endpoints. Each named component is a small "Key -> Value" config block;
// responses are cached per component and refreshed in the background so a
// render never blocks on the network.
package httpfetch

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/chatterbox-vr/chatterbox/internal/kvstore"
	"github.com/chatterbox-vr/chatterbox/internal/module"
)

const (
	defaultCacheDuration = 30 * time.Second
	maxResponseBytes     = 1 << 20

	userAgent = "Chatterbox/1.0"
)

// componentConfig is one parsed "Key -> Value" block, after placeholder
// resolution of the values.
type componentConfig struct {
	URL           string
	Method        string
	Headers       map[string]string
	Body          string
	ResponseJSON  bool
	CacheDuration time.Duration
}

type component struct {
	lines [][2]string

	mu         sync.Mutex
	lastBody   string
	lastOK     bool
	lastAt     time.Time
	refreshing bool
}

// Dependencies holds the collaborators the HTTP module needs.
type Dependencies struct {
	Store    kvstore.Store
	Resolver module.Resolver

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Module resolves HTTP component placeholders.
type Module struct {
	*module.Base
	client *http.Client

	mu             sync.Mutex
	components     map[string]*component
	lastComponents string
}

// New creates the HTTP module.
func New(deps Dependencies) *Module {
	desc := module.Descriptor{
		ID:          "http",
		Name:        "HTTP",
		Description: "HTTP request module, used to make HTTP requests and replace a key with the response.",
		Premium:     true,
		Inputs: []module.InputDefinition{
			{
				ID:              "http_components",
				Kind:            module.KindKeyValues,
				Name:            "HTTP Components",
				Description:     "HTTP components to use in the request.",
				AllowCustomKeys: true,
				DefaultMap: map[string]string{
					"random_quote": strings.Join([]string{
						"Url -> http://api.quotable.io/quotes/random?maxLength=50",
						"Method -> GET",
						"ResponseType -> JSON",
						"CacheDuration -> 30000",
					}, "\n"),
				},
			},
		},
		ExamplePlaceholders: []module.ExamplePlaceholder{
			{Placeholder: "key", Description: "Make an HTTP request with the key as the identifier. The key should match a key in the HTTP Components input."},
			{Placeholder: "random_quote;[0].content", Description: "Make an HTTP request with the key as the identifier and replace the key with the value at the specified JSON path in the response."},
		},
	}

	client := deps.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Module{
		Base:       module.NewBase(desc, deps.Store, deps.Resolver),
		client:     client,
		components: make(map[string]*component),
	}
}

// refreshComponents reparses the component table when the input changed.
// Parsed line pairs are kept per component; cached responses survive only
// while the whole table is unchanged, matching how an edit should flush.
func (m *Module) refreshComponents() {
	raw := m.MapInput("http_components")
	fingerprint, err := json.Marshal(raw)
	if err != nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if string(fingerprint) == m.lastComponents {
		return
	}
	m.lastComponents = string(fingerprint)
	m.components = make(map[string]*component, len(raw))

	for key, block := range raw {
		var lines [][2]string
		for _, line := range strings.Split(strings.TrimSpace(block), "\n") {
			name, value, _ := strings.Cut(strings.TrimSpace(line), "->")
			lines = append(lines, [2]string{strings.TrimSpace(name), strings.TrimSpace(value)})
		}
		m.components[key] = &component{lines: lines}
	}
}

func (m *Module) lookup(key string) *component {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.components[key]
}

// buildConfig resolves the component's values through the template engine so
// configs can reference other placeholders, then assembles the request config.
func (m *Module) buildConfig(ctx context.Context, c *component) (componentConfig, error) {
	values := make([]string, len(c.lines))
	for i, line := range c.lines {
		values[i] = line[1]
	}
	resolved, err := m.Resolver().ResolveMany(ctx, values, module.SyntaxOuter, nil)
	if err != nil {
		return componentConfig{}, err
	}

	fields := make(map[string]string, len(c.lines))
	for i, line := range c.lines {
		fields[line[0]] = resolved[i]
	}

	config := componentConfig{
		URL:           fields["Url"],
		Method:        fields["Method"],
		Body:          fields["Body"],
		ResponseJSON:  fields["ResponseType"] == "JSON",
		CacheDuration: defaultCacheDuration,
	}
	if config.Method == "" {
		config.Method = http.MethodGet
	}
	if raw := fields["Headers"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &config.Headers); err != nil {
			slog.Warn("Ignoring malformed component headers", "error", err)
		}
	}
	if raw := fields["CacheDuration"]; raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			config.CacheDuration = time.Duration(ms) * time.Millisecond
		}
	}
	return config, nil
}

// fetch returns the component's cached response, kicking off a background
// refresh when the cache is past its duration. The first request for a
// component returns before any response exists.
func (m *Module) fetch(ctx context.Context, key string, c *component) (componentConfig, string, bool) {
	config, err := m.buildConfig(ctx, c)
	if err != nil || config.URL == "" {
		if config.URL == "" {
			slog.Error("No URL provided for HTTP component", "component", key)
		}
		return config, "", false
	}

	c.mu.Lock()
	body := c.lastBody
	ok := c.lastOK
	fresh := !c.lastAt.IsZero() && time.Since(c.lastAt) < config.CacheDuration
	start := !fresh && !c.refreshing
	if start {
		c.refreshing = true
		c.lastAt = time.Now()
	}
	c.mu.Unlock()

	if start {
		go m.refresh(key, c, config)
	}
	return config, body, ok
}

func (m *Module) refresh(key string, c *component, config componentConfig) {
	defer func() {
		c.mu.Lock()
		c.refreshing = false
		c.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var reqBody io.Reader
	if config.Body != "" {
		reqBody = strings.NewReader(config.Body)
	}
	req, err := http.NewRequestWithContext(ctx, config.Method, config.URL, reqBody)
	if err != nil {
		slog.Error("Failed to build component request", "component", key, "error", err)
		return
	}
	for name, value := range config.Headers {
		req.Header.Set(name, value)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		slog.Error("Component request failed", "component", key, "url", config.URL, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Component request rejected", "component", key, "url", config.URL, "status", resp.StatusCode)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		slog.Error("Failed to read component response", "component", key, "error", err)
		return
	}

	c.mu.Lock()
	c.lastBody = string(payload)
	c.lastOK = true
	c.mu.Unlock()
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// toGJSONPath converts "[0].content" style paths to gjson's "0.content".
func toGJSONPath(path string) string {
	path = bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

// Placeholder implements module.Module.
func (m *Module) Placeholder(ctx context.Context, key string, args []string) (string, bool, error) {
	jsonPath := ""
	if len(args) > 0 {
		resolved, err := m.Resolver().ResolveMany(ctx, args[:1], module.SyntaxOuter, nil)
		if err != nil {
			return "", false, err
		}
		jsonPath = resolved[0]
	}

	m.refreshComponents()
	c := m.lookup(key)
	if c == nil {
		return "InvalidKey", true, nil
	}

	config, body, ok := m.fetch(ctx, key, c)
	if !ok {
		return "NoResponse", true, nil
	}
	if jsonPath != "" && config.ResponseJSON {
		value := gjson.Get(body, toGJSONPath(jsonPath))
		if !value.Exists() {
			return "NoValueAtPath:" + jsonPath, true, nil
		}
		return value.String(), true, nil
	}
	return body, true, nil
}
