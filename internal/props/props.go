// Package props carries already parsed widget configuration values.
package props

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"time"

	"github.com/rook-computer/lockscreen/internal/logging"
)

type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindString
	KindVec2
	KindColor
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindVec2:
		return "vec2"
	case KindColor:
		return "color"
	case KindRef:
		return "ref"
	}
	return "unknown"
}

type Vec2 struct {
	X, Y float64
}

// Value is a tagged variant over the configuration value kinds.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	v    Vec2
	c    color.NRGBA
}

func Int(v int64) Value         { return Value{kind: KindInt, i: v} }
func Float(v float64) Value     { return Value{kind: KindFloat, f: v} }
func String(v string) Value     { return Value{kind: KindString, s: v} }
func Vec(x, y float64) Value    { return Value{kind: KindVec2, v: Vec2{X: x, Y: y}} }
func Color(c color.NRGBA) Value { return Value{kind: KindColor, c: c} }
func Ref(name string) Value     { return Value{kind: KindRef, s: name} }

func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString, KindRef:
		return v.s
	case KindVec2:
		return fmt.Sprintf("%g,%g", v.v.X, v.v.Y)
	case KindColor:
		return fmt.Sprintf("rgba(%d,%d,%d,%d)", v.c.R, v.c.G, v.c.B, v.c.A)
	}
	return ""
}

// FromAny converts a decoded TOML/YAML scalar or pair into a Value.
func FromAny(x any) (Value, bool) {
	switch t := x.(type) {
	case int:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	case uint64:
		return Int(int64(t)), true
	case float64:
		return Float(t), true
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case []any:
		if len(t) != 2 {
			return Value{}, false
		}
		x, okx := number(t[0])
		y, oky := number(t[1])
		if !okx || !oky {
			return Value{}, false
		}
		return Vec(x, y), true
	}
	return Value{}, false
}

func number(x any) (float64, bool) {
	switch t := x.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

type Props map[string]Value

var ErrMissing = errors.New("missing required property")

// Reader is the single typed accessor over a widget's Props. Every accessor
// logs a warning and returns def when the stored kind does not fit.
type Reader struct {
	props     Props
	component string
	log       logging.Logger
}

func NewReader(p Props, component string, log logging.Logger) Reader {
	return Reader{props: p, component: component, log: logging.OrNoop(log)}
}

func (r Reader) Has(key string) bool {
	_, ok := r.props[key]
	return ok
}

// Require returns ErrMissing naming the first absent key.
func (r Reader) Require(keys ...string) error {
	for _, k := range keys {
		if !r.Has(k) {
			return fmt.Errorf("%s: %w %q", r.component, ErrMissing, k)
		}
	}
	return nil
}

// Warnf logs a configuration problem under the reader's component.
func (r Reader) Warnf(format string, args ...interface{}) {
	r.log.Warnf(r.component, format, args...)
}

func (r Reader) mismatch(key string, v Value, want string, def any) {
	r.log.Warnf(r.component, "property %s has type %s, expected %s; using default %v", key, v.kind, want, def)
}

func (r Reader) Int(key string, def int) int {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindInt:
		return int(v.i)
	case KindString:
		if n, err := strconv.Atoi(strings.TrimSpace(v.s)); err == nil {
			return n
		}
	}
	r.mismatch(key, v, "int", def)
	return def
}

func (r Reader) Float(key string, def float64) float64 {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt:
		return float64(v.i)
	case KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
			return f
		}
	}
	r.mismatch(key, v, "float", def)
	return def
}

func (r Reader) String(key string, def string) string {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindString, KindRef:
		return v.s
	case KindInt, KindFloat:
		return v.String()
	}
	r.mismatch(key, v, "string", def)
	return def
}

func (r Reader) Bool(key string, def bool) bool {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindInt:
		return v.i != 0
	case KindString:
		if b, err := strconv.ParseBool(strings.TrimSpace(v.s)); err == nil {
			return b
		}
	}
	r.mismatch(key, v, "bool", def)
	return def
}

func (r Reader) Vec2(key string, def Vec2) Vec2 {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindVec2:
		return v.v
	case KindString:
		if p, err := ParseVec2(v.s); err == nil {
			return p
		}
	case KindInt:
		return Vec2{X: float64(v.i), Y: float64(v.i)}
	}
	r.mismatch(key, v, "vec2", def)
	return def
}

func (r Reader) Color(key string, def color.NRGBA) color.NRGBA {
	v, ok := r.props[key]
	if !ok {
		return def
	}
	switch v.kind {
	case KindColor:
		return v.c
	case KindInt:
		return ColorFromARGB(uint32(v.i))
	case KindString:
		if c, err := ParseColor(v.s); err == nil {
			return c
		}
	}
	r.mismatch(key, v, "color", def)
	return def
}

// DurationMs reads an int or float number of milliseconds.
func (r Reader) DurationMs(key string, def time.Duration) time.Duration {
	if !r.Has(key) {
		return def
	}
	ms := r.Float(key, float64(def)/float64(time.Millisecond))
	return time.Duration(ms * float64(time.Millisecond))
}

// DurationSeconds reads an int or float number of seconds.
func (r Reader) DurationSeconds(key string, def time.Duration) time.Duration {
	if !r.Has(key) {
		return def
	}
	sec := r.Float(key, def.Seconds())
	return time.Duration(sec * float64(time.Second))
}

func ParseVec2(s string) (Vec2, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Vec2{}, fmt.Errorf("vec2 %q: want \"x,y\"", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Vec2{}, fmt.Errorf("vec2 %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Vec2{}, fmt.Errorf("vec2 %q: %w", s, err)
	}
	return Vec2{X: x, Y: y}, nil
}

func ColorFromARGB(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: uint8(v >> 24)}
}

// ParseColor accepts 0xAARRGGBB, #RRGGBB, #RRGGBBAA, rgb(r,g,b) and
// rgba(r,g,b,a) with a in [0,1].
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "0x"):
		n, err := strconv.ParseUint(s[2:], 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
		}
		if len(s[2:]) <= 6 {
			n |= 0xFF000000
		}
		return ColorFromARGB(uint32(n)), nil
	case strings.HasPrefix(lower, "#"):
		hex := s[1:]
		if len(hex) != 6 && len(hex) != 8 {
			return color.NRGBA{}, fmt.Errorf("color %q: want 6 or 8 hex digits", s)
		}
		n, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
		}
		if len(hex) == 6 {
			return ColorFromARGB(uint32(n) | 0xFF000000), nil
		}
		return color.NRGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
	case strings.HasPrefix(lower, "rgba(") || strings.HasPrefix(lower, "rgb("):
		open := strings.IndexByte(s, '(')
		if !strings.HasSuffix(s, ")") {
			return color.NRGBA{}, fmt.Errorf("color %q: missing ')'", s)
		}
		fields := strings.Split(s[open+1:len(s)-1], ",")
		want := 3
		if strings.HasPrefix(lower, "rgba(") {
			want = 4
		}
		if len(fields) != want {
			return color.NRGBA{}, fmt.Errorf("color %q: want %d components", s, want)
		}
		var ch [4]float64
		ch[3] = 1
		for i, f := range fields {
			val, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
			}
			ch[i] = val
		}
		return color.NRGBA{R: clamp8(ch[0]), G: clamp8(ch[1]), B: clamp8(ch[2]), A: clamp8(ch[3] * 255)}, nil
	}
	return color.NRGBA{}, fmt.Errorf("color %q: unrecognised format", s)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
