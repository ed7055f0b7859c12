package plugins

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/go-while/go-dailyprophet/internal/config"
)

func TestRegisterDefaultsProvidesEditor(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := NewRegistry([]string{"@fortawesome/fontawesome-free/css/all.css"}, zap.New(core))

	require.NoError(t, RegisterDefaults(reg, nil))

	p, ok := reg.Get(ToastEditorName)
	require.True(t, ok)
	assert.Equal(t, ModeClient, p.Mode)
	assert.NotEmpty(t, p.Scripts)
	assert.Equal(t, 1, logs.FilterMessage("✅ Toast Editor 插件已載入").Len())

	m := reg.Manifest()
	assert.Equal(t, []string{ToastEditorName}, m.Order)
	assert.Equal(t, []string{"https://cdn.jsdelivr.net/npm/@fortawesome/fontawesome-free/css/all.css"}, m.CSS)
	assert.Contains(t, m.Provide, ToastEditorName)
}

func TestRegisterDefaultsWithConfiguredPlugins(t *testing.T) {
	reg := NewRegistry(nil, nil)
	err := RegisterDefaults(reg, []config.PluginConfig{
		{Name: "analytics", Scripts: []string{"/static/analytics.js"}},
		{Name: "ssrOnly", Mode: ModeServer},
	})
	require.NoError(t, err)

	names := []string{}
	for _, p := range reg.ClientPlugins() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"analytics", ToastEditorName}, names)

	_, ok := reg.Get("ssrOnly")
	assert.True(t, ok)
}

func TestProvideRejectsInvalid(t *testing.T) {
	reg := NewRegistry(nil, nil)
	assert.ErrorIs(t, reg.Provide(Plugin{Name: "  "}), ErrPluginName)
	assert.ErrorIs(t, reg.Provide(Plugin{Name: "x", Mode: "kernel"}), ErrPluginMode)

	require.NoError(t, reg.Provide(Plugin{Name: "x"}))
	assert.ErrorIs(t, reg.Provide(Plugin{Name: "x"}), ErrPluginDuplicate)
}

func TestResolveAsset(t *testing.T) {
	cases := []struct{ in, want string }{
		{"@fortawesome/fontawesome-free/css/all.css", "https://cdn.jsdelivr.net/npm/@fortawesome/fontawesome-free/css/all.css"},
		{"npm:prismjs/themes/prism.css", "https://cdn.jsdelivr.net/npm/prismjs/themes/prism.css"},
		{"https://uicdn.toast.com/editor/latest/toastui-editor.min.css", "https://uicdn.toast.com/editor/latest/toastui-editor.min.css"},
		{"//cdn.example.org/a.js", "//cdn.example.org/a.js"},
		{"/static/site.css", "/static/site.css"},
		{"  ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ResolveAsset(tc.in), tc.in)
	}
}

func TestProvideResolvesBareSpecifiers(t *testing.T) {
	reg := NewRegistry([]string{"@fortawesome/fontawesome-free/css/all.css", "", "/static/site.css"}, nil)
	require.NoError(t, reg.Provide(Plugin{
		Name:    "highlight",
		Scripts: []string{"highlight.js/lib/common.js"},
		Styles:  []string{"https://cdn.example.org/hl.css"},
	}))

	p, ok := reg.Get("highlight")
	require.True(t, ok)
	assert.Equal(t, []string{"https://cdn.jsdelivr.net/npm/highlight.js/lib/common.js"}, p.Scripts)
	assert.Equal(t, []string{"https://cdn.example.org/hl.css"}, p.Styles)
	assert.Equal(t, []string{
		"https://cdn.jsdelivr.net/npm/@fortawesome/fontawesome-free/css/all.css",
		"/static/site.css",
	}, reg.Manifest().CSS)
}

func TestManifestJSON(t *testing.T) {
	reg := NewRegistry(nil, nil)
	require.NoError(t, reg.Provide(Plugin{Name: "bare"}))

	data, err := json.Marshal(reg.Manifest())
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"provide": {"bare": {"name": "bare", "mode": "client", "scripts": [], "styles": []}},
		"order": ["bare"],
		"css": []
	}`, string(data))
}
