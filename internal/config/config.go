// Package config loads the lock screen layout: general options plus one
// property bag per widget, in TOML or YAML.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/rook-computer/lockscreen/internal/logging"
	"github.com/rook-computer/lockscreen/internal/props"
)

const EnvConfig = "LOCKSCREEN_CONFIG"

// WidgetKinds lists the layout sections that become widgets, in the order
// they are built.
var WidgetKinds = []string{"background", "shape", "image", "label"}

type General struct {
	FadeIn          bool
	FadeInDuration  time.Duration
	FailTimeout     time.Duration
	FrameInterval   time.Duration
	Workers         int
	ImmediateRender bool
	// Monitor restricts the layout to one output; empty means all.
	Monitor string
}

type Widget struct {
	Kind  string
	Props props.Props
}

type Layout struct {
	General General
	Widgets []Widget
}

func DefaultGeneral() General {
	return General{
		FadeIn:         true,
		FadeInDuration: 200 * time.Millisecond,
		FailTimeout:    2 * time.Second,
		FrameInterval:  16 * time.Millisecond,
		Workers:        2,
	}
}

// Default is the layout used without a configuration file: a dark
// background with the time on top.
func Default() *Layout {
	return &Layout{
		General: DefaultGeneral(),
		Widgets: []Widget{
			{Kind: "background", Props: props.Props{"color": props.String("rgb(24,24,32)")}},
			{Kind: "label", Props: props.Props{
				"text":      props.String("$TIME"),
				"font_size": props.Int(64),
				"position":  props.Vec(0, 80),
			}},
		},
	}
}

// DefaultPath is $LOCKSCREEN_CONFIG, or lockscreen.toml in the user's
// config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lockscreen", "lockscreen.toml")
}

// Load reads path from fs. The format follows the extension: .yaml and .yml
// are YAML, everything else TOML.
func Load(fs afero.Fs, path string, log logging.Logger) (*Layout, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	format := "toml"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	layout, err := Parse(data, format, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return layout, nil
}

// Resolve loads the layout a binary starts with. An empty path means
// DefaultPath, and a missing default file falls back to Default. A path
// given explicitly must exist.
func Resolve(fs afero.Fs, path string, log logging.Logger) (*Layout, error) {
	log = logging.OrNoop(log)
	if path != "" {
		return Load(fs, path, log)
	}
	path = DefaultPath()
	if path != "" {
		if ok, _ := afero.Exists(fs, path); ok {
			return Load(fs, path, log)
		}
	}
	log.Infof("config", "no layout at %q, using the built-in default", path)
	return Default(), nil
}

func Parse(data []byte, format string, log logging.Logger) (*Layout, error) {
	log = logging.OrNoop(log)
	raw := map[string]any{}
	switch format {
	case "toml":
		if err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown config format %q", format)
	}

	layout := &Layout{General: DefaultGeneral()}
	if g, ok := raw["general"]; ok {
		table, ok := g.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("general: expected a table, got %T", g)
		}
		if err := applyGeneral(&layout.General, table, log); err != nil {
			return nil, err
		}
	}

	for _, kind := range WidgetKinds {
		entries, err := sections(raw[kind])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		for i, entry := range entries {
			layout.Widgets = append(layout.Widgets, Widget{Kind: kind, Props: toProps(entry, fmt.Sprintf("%s[%d]", kind, i), log)})
		}
	}
	for key := range raw {
		if key != "general" && !isWidgetKind(key) {
			log.Warnf("config", "ignoring unknown section %q", key)
		}
	}
	return layout, nil
}

// sections accepts a single table or an array of tables.
func sections(v any) ([]map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{t}, nil
	case []any:
		out := make([]map[string]any, 0, len(t))
		for i, e := range t {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("entry %d: expected a table, got %T", i, e)
			}
			out = append(out, m)
		}
		return out, nil
	case []map[string]any:
		return t, nil
	}
	return nil, fmt.Errorf("expected a table or an array of tables, got %T", v)
}

func toProps(entry map[string]any, where string, log logging.Logger) props.Props {
	keys := make([]string, 0, len(entry))
	for k := range entry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	p := make(props.Props, len(entry))
	for _, k := range keys {
		v, ok := props.FromAny(entry[k])
		if !ok {
			log.Warnf("config", "%s.%s: unsupported value %v", where, k, entry[k])
			continue
		}
		p[k] = v
	}
	return p
}

func applyGeneral(g *General, table map[string]any, log logging.Logger) error {
	r := props.NewReader(toProps(table, "general", log), "config", log)
	g.FadeIn = r.Bool("fade_in", g.FadeIn)
	g.FadeInDuration = r.DurationMs("fade_in_duration", g.FadeInDuration)
	g.FailTimeout = r.DurationMs("fail_timeout", g.FailTimeout)
	g.FrameInterval = r.DurationMs("frame_interval", g.FrameInterval)
	g.Workers = r.Int("workers", g.Workers)
	g.ImmediateRender = r.Bool("immediate_render", g.ImmediateRender)
	g.Monitor = r.String("monitor", g.Monitor)
	if g.Workers < 1 {
		return fmt.Errorf("general.workers must be at least 1, got %d", g.Workers)
	}
	if g.FrameInterval <= 0 {
		return fmt.Errorf("general.frame_interval must be positive, got %v", g.FrameInterval)
	}
	return nil
}

func isWidgetKind(s string) bool {
	for _, k := range WidgetKinds {
		if k == s {
			return true
		}
	}
	return false
}
