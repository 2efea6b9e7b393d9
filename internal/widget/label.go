package widget

import (
	"fmt"
	"sync/atomic"

	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/props"
	"github.com/rook-computer/lockscreen/internal/render"
	"github.com/rook-computer/lockscreen/internal/render/layout"
	"github.com/rook-computer/lockscreen/internal/timer"
)

var labelIDs atomic.Uint64

// textProps are forwarded to the text shaper.
var textProps = []string{"font_family", "font_size", "color", "text_align", "text_orientation"}

type Label struct {
	deps  Deps
	self  WeakRef[Label]
	slot  *Slot
	fader *Fader
	timer *timer.Timer

	id  uint64
	seq uint64

	outputID string
	viewport layout.Point
	pos      layout.Point
	halign   string
	valign   string
	angle    float64
	zindex   int

	text      string
	formatted Formatted
	shapeOpts props.Props
}

func NewLabel(deps Deps) *Label {
	l := &Label{deps: deps, id: labelIDs.Add(1), zindex: 20}
	l.self = NewWeakRef(l)
	l.slot = NewSlot(&l.deps, "label")
	l.slot.OnChange = l.requestRender
	l.fader = NewFader(deps.Timers, l.requestRender)
	return l
}

func (l *Label) Type() string { return "label" }

func (l *Label) Zindex() int { return l.zindex }

func (l *Label) Configure(p props.Props, out render.Output) error {
	r := props.NewReader(p, "label", l.deps.Logger)
	if err := r.Require("text"); err != nil {
		return err
	}
	l.outputID = out.ID
	l.viewport = layout.Point{X: float64(out.Viewport.X), Y: float64(out.Viewport.Y)}
	pos := r.Vec2("position", props.Vec2{})
	l.pos = layout.Point{X: pos.X, Y: pos.Y}
	l.halign = r.String("halign", "center")
	l.valign = r.String("valign", "center")
	if _, ok := layout.PosFromHVAlign(l.viewport, layout.Point{}, l.pos, l.halign, l.valign); !ok {
		r.Warnf("invalid alignment %q/%q, using the raw position", l.halign, l.valign)
	}
	l.angle = degrees(r.Float("rotate", 0))
	l.zindex = r.Int("zindex", 20)
	l.text = r.String("text", "")
	configureFade(r, l.fader)

	l.shapeOpts = props.Props{}
	for _, k := range textProps {
		if v, ok := p[k]; ok {
			l.shapeOpts[k] = v
		}
	}

	l.formatted = l.format()
	if err := l.slot.Load(l.request()); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	l.plantTimer()
	l.fader.Start()
	return nil
}

func (l *Label) format() Formatted {
	env := FormatEnv{User: l.deps.User, Now: l.deps.now()}
	if l.deps.Session != nil {
		env.Session = l.deps.Session.Snapshot()
	}
	return FormatString(l.text, env)
}

// request builds the shaping request for the current text under a fresh key.
func (l *Label) request() gatherer.Request {
	l.seq++
	opts := make(props.Props, len(l.shapeOpts)+1)
	for k, v := range l.shapeOpts {
		opts[k] = v
	}
	opts["cmd"] = props.Bool(l.formatted.Cmd)
	return gatherer.Request{
		Key:    fmt.Sprintf("label:%d,seq:%d", l.id, l.seq),
		Source: l.formatted.Text,
		Target: gatherer.TargetText,
		Props:  opts,
	}
}

func (l *Label) plantTimer() {
	self := l.self
	onTimer := func(*timer.Timer) { self.Do((*Label).update) }
	switch {
	case l.formatted.UpdateEvery > 0:
		l.timer = l.deps.Timers.AddRepeating(l.formatted.UpdateEvery, onTimer, timer.WithForceUpdate(l.formatted.AllowForceUpdate))
	case l.formatted.AllowForceUpdate:
		l.timer = l.deps.Timers.AddRepeating(keepAliveInterval, onTimer, timer.WithForceUpdate(true))
	}
}

func (l *Label) update() {
	next := l.format()
	if next.Text == l.formatted.Text && !next.AlwaysUpdate {
		return
	}
	if pending := l.slot.PendingKey(); pending != "" {
		l.deps.log().Warnf("label", "trying to update label, but %s is still pending; skipping", pending)
		return
	}
	l.formatted = next
	if _, err := l.slot.Replace(l.request()); err != nil {
		l.deps.log().Errorf("label", "update: %v", err)
	}
}

func (l *Label) requestRender() { l.deps.render(l.outputID) }

func (l *Label) Draw(data render.RenderData) bool {
	a := l.slot.Current()
	if a == nil {
		return l.slot.CurrentKey() != ""
	}
	if !a.Valid || !a.Texture.Valid() {
		l.slot.DropCurrent()
		return false
	}
	opacity := data.Opacity * l.fader.Opacity()
	size := a.Texture.Size()
	pos, _ := layout.PosFromHVAlign(l.viewport, layout.Point{X: float64(size.X), Y: float64(size.Y)}, l.pos, l.halign, l.valign)
	box := render.Box{X: pos.X, Y: pos.Y, W: float64(size.X), H: float64(size.Y), Rot: l.angle}
	l.deps.Backend.RenderTexture(box, a.Texture, opacity, 0)
	return animating(opacity)
}

func (l *Label) Destroy() {
	l.self.Release()
	l.timer.Cancel()
	l.timer = nil
	l.fader.Destroy()
	l.slot.Destroy()
}
