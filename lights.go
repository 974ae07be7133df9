package relod

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type LightKind uint32

const (
	LightPoint LightKind = iota
	LightDirectional
	LightSpot
	LightAmbient
)

// BakeMode flags how a light contributes lighting. Baked-only lights are
// excluded from change tracking: their contribution never moves.
type BakeMode int

const (
	BakeRealtime BakeMode = iota
	BakeMixed
	BakeBaked
)

type Light struct {
	Name      string
	Kind      LightKind
	Enabled   bool
	Color     mgl32.Vec3
	Intensity float32
	Rotation  mgl32.Quat
	Bake      BakeMode
}

// NewSunLight builds an enabled realtime directional light aimed along dir.
func NewSunLight(name string, dir mgl32.Vec3, color mgl32.Vec3, intensity float32) *Light {
	return &Light{
		Name:      name,
		Kind:      LightDirectional,
		Enabled:   true,
		Color:     color,
		Intensity: intensity,
		Rotation:  mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, -1}, dir),
		Bake:      BakeRealtime,
	}
}

func NewPointLight(name string, color mgl32.Vec3, intensity float32) *Light {
	return &Light{
		Name:      name,
		Kind:      LightPoint,
		Enabled:   true,
		Color:     color,
		Intensity: intensity,
		Rotation:  mgl32.QuatIdent(),
		Bake:      BakeRealtime,
	}
}

// scaledColor is the color-times-intensity vector compared for changes.
func (l *Light) scaledColor() mgl32.Vec3 {
	return l.Color.Mul(l.Intensity)
}

func (l *Light) forward() mgl32.Vec3 {
	return l.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

type lightState struct {
	enabled bool
	scaled  mgl32.Vec3
	forward mgl32.Vec3
}

// LightChangeTracker polls tracked lights once per frame and reports
// whether any of them changed materially since the last poll.
type LightChangeTracker struct {
	intensityThreshold float32
	cosAngleThreshold  float32
	states             map[*Light]lightState
	// A light tracked mid-run is itself a lighting change.
	dirty bool
}

func NewLightChangeTracker(cfg LightConfig) *LightChangeTracker {
	angle := float64(mgl32.DegToRad(cfg.AngleThresholdDegrees))
	return &LightChangeTracker{
		intensityThreshold: cfg.IntensityThreshold,
		cosAngleThreshold:  float32(math.Cos(angle)),
		states:             make(map[*Light]lightState),
	}
}

// Track begins watching a light. Baked-only lights are ignored.
func (t *LightChangeTracker) Track(l *Light) {
	if l == nil || l.Bake == BakeBaked {
		return
	}
	if _, ok := t.states[l]; ok {
		return
	}
	t.states[l] = captureLightState(l)
	if l.Enabled {
		t.dirty = true
	}
}

func (t *LightChangeTracker) Untrack(l *Light) {
	delete(t.states, l)
}

func (t *LightChangeTracker) TrackedCount() int {
	return len(t.states)
}

// Changed polls every tracked light, updates the stored states, and
// reports whether any enabled flip, intensity delta, or direction delta
// crossed its threshold.
func (t *LightChangeTracker) Changed() bool {
	changed := t.dirty
	t.dirty = false
	for l, prev := range t.states {
		cur := captureLightState(l)
		if t.lightChanged(prev, cur) {
			changed = true
		}
		t.states[l] = cur
	}
	return changed
}

func (t *LightChangeTracker) lightChanged(prev, cur lightState) bool {
	if prev.enabled != cur.enabled {
		return true
	}
	if !cur.enabled {
		// Both disabled: nothing a probe could see.
		return false
	}
	delta := cur.scaled.Sub(prev.scaled)
	if delta.Len() > t.intensityThreshold {
		return true
	}
	return cur.forward.Dot(prev.forward) < t.cosAngleThreshold
}

func captureLightState(l *Light) lightState {
	return lightState{
		enabled: l.Enabled,
		scaled:  l.scaledColor(),
		forward: l.forward(),
	}
}
