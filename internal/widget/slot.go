package widget

import (
	"time"

	"github.com/rook-computer/lockscreen/internal/asset"
	"github.com/rook-computer/lockscreen/internal/gatherer"
	"github.com/rook-computer/lockscreen/internal/timer"
)

// pendingRetryDelay is how long a slot waits before looking up a completed
// asset a second time.
const pendingRetryDelay = 100 * time.Millisecond

// Slot holds the asset a widget displays and swaps in replacements. The
// current asset is referenced by key and looked up again on every use; a
// replacement waits as pending until it is promoted, either right away or
// when the crossfade timer fires. The superseded asset is unloaded only after
// promotion.
type Slot struct {
	// Crossfade is the blend duration for replacements; zero or less swaps
	// immediately.
	Crossfade time.Duration
	// Preserve keeps the superseded asset loaded on promotion.
	Preserve bool
	// OnChange runs whenever what the slot shows changed or a load finished.
	OnChange func()
	// OnPromote runs right after a pending asset became current.
	OnPromote func()

	deps      *Deps
	component string
	self      WeakRef[Slot]

	currentKey string
	current    *asset.Asset
	currentReq *inflight
	pendingKey string
	pending    *asset.Asset
	pendingReq *inflight

	crossStart time.Time
	crossTimer *timer.Timer
	retryTimer *timer.Timer
	retried    bool
}

// inflight tracks one request of the slot. A request the slot gave up on
// before it arrived releases its reference on arrival.
type inflight struct {
	key       string
	arrived   bool
	abandoned bool
}

// track wraps then so an abandoned request drops the reference it produced.
func (s *Slot) track(key string, then func(*Slot)) (*inflight, func()) {
	r := &inflight{key: key}
	self := s.self
	g := s.deps.Gatherer
	return r, func() {
		r.arrived = true
		if r.abandoned {
			g.Unload(g.AssetByID(r.key))
			return
		}
		self.Do(then)
	}
}

// abandon gives up on r. It reports false when r already arrived and the
// reference is the caller's to release.
func abandon(r *inflight, key string) bool {
	if r == nil || r.key != key || r.arrived {
		return false
	}
	r.abandoned = true
	return true
}

func NewSlot(deps *Deps, component string) *Slot {
	s := &Slot{deps: deps, component: component}
	s.self = NewWeakRef(s)
	return s
}

func (s *Slot) CurrentKey() string { return s.currentKey }

func (s *Slot) PendingKey() string { return s.pendingKey }

// Load requests the initial asset and makes its key current right away; the
// asset shows up in Current once the gatherer produced it.
func (s *Slot) Load(req gatherer.Request) error {
	s.currentKey = req.Key
	s.current = nil
	s.currentReq, req.Callback = s.track(req.Key, (*Slot).changed)
	if err := s.deps.Gatherer.RequestPreload(req); err != nil {
		s.currentKey = ""
		s.currentReq = nil
		return err
	}
	return nil
}

// Replace requests req as the next asset. It reports false without doing
// anything while another replacement is still pending.
func (s *Slot) Replace(req gatherer.Request) (bool, error) {
	if s.pendingKey != "" {
		return false, nil
	}
	s.pendingKey = req.Key
	s.retried = false
	s.pendingReq, req.Callback = s.track(req.Key, (*Slot).onPendingReady)
	if err := s.deps.Gatherer.RequestPreload(req); err != nil {
		s.pendingKey = ""
		s.pendingReq = nil
		return false, err
	}
	return true, nil
}

// Current looks the current asset up again. It is nil while loading or when
// nothing is configured.
func (s *Slot) Current() *asset.Asset {
	if s.currentKey == "" {
		return nil
	}
	a := s.deps.Gatherer.AssetByID(s.currentKey)
	if a != nil {
		s.current = a
	}
	return a
}

// Pending is the asset being crossfaded to, if any.
func (s *Slot) Pending() *asset.Asset { return s.pending }

func (s *Slot) Crossfading() bool { return s.crossTimer != nil && s.pending != nil }

// CrossfadeProgress is the blend factor towards the pending asset.
func (s *Slot) CrossfadeProgress(now time.Time) float64 {
	if !s.Crossfading() || s.Crossfade <= 0 {
		return 0
	}
	return clamp01(float64(now.Sub(s.crossStart)) / float64(s.Crossfade))
}

// DropCurrent unloads a current asset that turned out to be unusable and
// clears the key so the widget falls back.
func (s *Slot) DropCurrent() {
	a := s.deps.Gatherer.AssetByID(s.currentKey)
	if a != nil {
		s.deps.Gatherer.Unload(a)
		if a.Err != nil {
			s.deps.log().Errorf(s.component, "asset %s is invalid: %v", s.currentKey, a.Err)
		}
	}
	s.currentKey = ""
	s.current = nil
	s.currentReq = nil
}

func (s *Slot) onPendingReady() {
	s.retryTimer = nil
	if s.pendingKey == "" {
		s.changed()
		return
	}
	a := s.deps.Gatherer.AssetByID(s.pendingKey)
	if a == nil {
		if !s.retried {
			s.retried = true
			s.deps.log().Warnf(s.component, "asset %s not available after the gatherer callback, retrying", s.pendingKey)
			self := s.self
			s.retryTimer = s.deps.Timers.AddTimer(pendingRetryDelay, func(*timer.Timer) { self.Do((*Slot).onPendingReady) })
			return
		}
		s.deps.log().Warnf(s.component, "asset %s still not available, dropping the update", s.pendingKey)
		s.pendingKey = ""
		s.changed()
		return
	}
	if !a.Valid {
		s.deps.log().Errorf(s.component, "new asset %s is invalid: %v", s.pendingKey, a.Err)
		s.deps.Gatherer.Unload(a)
		s.pendingKey = ""
		s.changed()
		return
	}
	if s.pendingKey == s.currentKey {
		s.deps.Gatherer.Unload(a)
		s.pendingKey = ""
		s.changed()
		return
	}

	s.pending = a
	if s.Crossfade > 0 {
		s.crossTimer.Cancel()
		s.crossStart = s.deps.now()
		self := s.self
		s.crossTimer = s.deps.Timers.AddTimer(s.Crossfade, func(*timer.Timer) { self.Do((*Slot).promote) })
		s.changed()
		return
	}
	s.promote()
}

func (s *Slot) promote() {
	if s.pending == nil {
		return
	}
	if !s.Preserve && s.currentKey != "" && !abandon(s.currentReq, s.currentKey) {
		old := s.current
		if a := s.deps.Gatherer.AssetByID(s.currentKey); a != nil {
			old = a
		}
		s.deps.Gatherer.Unload(old)
	}
	s.crossTimer = nil
	s.currentKey = s.pendingKey
	s.current = s.pending
	s.currentReq = s.pendingReq
	s.pendingKey = ""
	s.pending = nil
	s.pendingReq = nil
	if s.OnPromote != nil {
		s.OnPromote()
	}
	s.changed()
}

func (s *Slot) changed() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

// Destroy cancels the slot's timers and unloads what it owns. Requests still
// in flight release their reference when they arrive.
func (s *Slot) Destroy() {
	s.self.Release()
	s.crossTimer.Cancel()
	s.crossTimer = nil
	s.retryTimer.Cancel()
	s.retryTimer = nil
	if s.currentKey != "" && !abandon(s.currentReq, s.currentKey) {
		cur := s.current
		if a := s.deps.Gatherer.AssetByID(s.currentKey); a != nil {
			cur = a
		}
		s.deps.Gatherer.Unload(cur)
	}
	if s.pending != nil {
		s.deps.Gatherer.Unload(s.pending)
	} else if s.pendingKey != "" {
		abandon(s.pendingReq, s.pendingKey)
	}
	s.current = nil
	s.pending = nil
	s.currentKey = ""
	s.pendingKey = ""
	s.currentReq = nil
	s.pendingReq = nil
}
