// Package plugins keeps the registry of client-side plugins the frontend loads at boot.
// The server only publishes a manifest; the browser injects the scripts and styles and
// exposes each plugin under its registered name.
package plugins

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/logging"
)

const (
	ModeClient    = "client"
	ModeServer    = "server"
	ModeUniversal = "universal"

	ToastEditorName = "toastEditor"

	// NPMCDN serves bare package specifiers like "pkg/path/file.css".
	NPMCDN = "https://cdn.jsdelivr.net/npm/"
)

var (
	ErrPluginName      = errors.New("plugin name required")
	ErrPluginDuplicate = errors.New("plugin already provided")
	ErrPluginMode      = errors.New("unknown plugin mode")
)

// Plugin is one entry of the manifest.
type Plugin struct {
	Name        string   `json:"name"`
	Mode        string   `json:"mode"`
	Scripts     []string `json:"scripts"`
	Styles      []string `json:"styles"`
	Global      string   `json:"global,omitempty"` // browser global the plugin is exposed from once its scripts ran
	Description string   `json:"description,omitempty"`
	loadedMsg   string
}

// ToastEditor is the rich-text editor used by the post editing pages.
var ToastEditor = Plugin{
	Name:        ToastEditorName,
	Mode:        ModeClient,
	Scripts:     []string{"https://uicdn.toast.com/editor/latest/toastui-editor-all.min.js"},
	Styles:      []string{"https://uicdn.toast.com/editor/latest/toastui-editor.min.css"},
	Global:      "toastui.Editor",
	Description: "Toast UI Editor",
	loadedMsg:   "✅ Toast Editor 插件已載入",
}

// Manifest is what GET /api/plugins returns.
type Manifest struct {
	Provide map[string]Plugin `json:"provide"`
	Order   []string          `json:"order"`
	CSS     []string          `json:"css"`
}

// Registry collects plugins. Safe for concurrent use.
type Registry struct {
	mux     sync.RWMutex
	plugins map[string]Plugin
	css     []string
	logger  *zap.Logger
}

func NewRegistry(globalCSS []string, logger *zap.Logger) *Registry {
	return &Registry{
		plugins: make(map[string]Plugin),
		css:     resolveAssets(globalCSS),
		logger:  logging.OrNop(logger),
	}
}

// ResolveAsset turns a bare npm specifier into a URL the browser can fetch.
// Absolute URLs, protocol-relative URLs and site paths are returned unchanged.
func ResolveAsset(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "",
		strings.HasPrefix(ref, "http://"),
		strings.HasPrefix(ref, "https://"),
		strings.HasPrefix(ref, "/"):
		return ref
	}
	return NPMCDN + strings.TrimPrefix(ref, "npm:")
}

func resolveAssets(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref = ResolveAsset(ref); ref != "" {
			out = append(out, ref)
		}
	}
	return out
}

// Provide registers p under p.Name. Mode defaults to client.
func (r *Registry) Provide(p Plugin) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return ErrPluginName
	}
	switch p.Mode {
	case "":
		p.Mode = ModeClient
	case ModeClient, ModeServer, ModeUniversal:
	default:
		return fmt.Errorf("%w %q for %s", ErrPluginMode, p.Mode, p.Name)
	}
	p.Scripts = resolveAssets(p.Scripts)
	p.Styles = resolveAssets(p.Styles)

	r.mux.Lock()
	defer r.mux.Unlock()
	if _, exists := r.plugins[p.Name]; exists {
		return fmt.Errorf("%w: %s", ErrPluginDuplicate, p.Name)
	}
	r.plugins[p.Name] = p

	msg := p.loadedMsg
	if msg == "" {
		msg = "plugin loaded"
	}
	r.logger.Info(msg, zap.String("plugin", p.Name), zap.String("mode", p.Mode))
	return nil
}

// Get returns a registered plugin.
func (r *Registry) Get(name string) (Plugin, bool) {
	r.mux.RLock()
	defer r.mux.RUnlock()
	p, ok := r.plugins[name]
	return p, ok
}

// ClientPlugins returns the plugins the browser loads, sorted by name.
func (r *Registry) ClientPlugins() []Plugin {
	r.mux.RLock()
	defer r.mux.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		if p.Mode == ModeClient || p.Mode == ModeUniversal {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Manifest snapshots the client plugins and the global stylesheets.
func (r *Registry) Manifest() Manifest {
	client := r.ClientPlugins()
	m := Manifest{
		Provide: make(map[string]Plugin, len(client)),
		Order:   make([]string, 0, len(client)),
		CSS:     append([]string{}, r.css...),
	}
	for _, p := range client {
		m.Provide[p.Name] = p
		m.Order = append(m.Order, p.Name)
	}
	return m
}

// RegisterDefaults provides the editor and every plugin declared in the config.
func RegisterDefaults(r *Registry, cfgPlugins []config.PluginConfig) error {
	if err := r.Provide(ToastEditor); err != nil {
		return err
	}
	for _, pc := range cfgPlugins {
		err := r.Provide(Plugin{
			Name:    pc.Name,
			Mode:    pc.Mode,
			Scripts: pc.Scripts,
			Styles:  pc.Styles,
			Global:  pc.Global,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
