package relod

import "fmt"

// ShadingModel classifies a material at authoring time. Cross-fade
// variant selection pattern-matches on this instead of shader names.
type ShadingModel int

const (
	ShadingOpaque ShadingModel = iota
	ShadingTransparent
	ShadingCutout
	ShadingOther
)

func (m ShadingModel) String() string {
	switch m {
	case ShadingOpaque:
		return "Opaque"
	case ShadingTransparent:
		return "Transparent"
	case ShadingCutout:
		return "TransparentCutout"
	default:
		return "Other"
	}
}

// Render-queue buckets, matching the conventional geometry / alpha-test /
// transparent ordering.
const (
	RenderQueueGeometry    = 2000
	RenderQueueAlphaTest   = 2450
	RenderQueueTransparent = 3000
)

// Material is a shared asset: enabling cross-fade mutates it in place so
// every renderer sharing the instance is re-skinned together.
type Material struct {
	Name        string
	Shading     ShadingModel
	CrossFade   bool
	RenderType  string
	RenderQueue int
	// Immutable marks a shared read-only asset. Such materials are
	// skipped with a warning instead of mutated.
	Immutable bool
}

// materialState snapshots the mutable fields for transactional rollback.
type materialState struct {
	crossFade   bool
	renderType  string
	renderQueue int
}

func (m *Material) snapshot() materialState {
	return materialState{
		crossFade:   m.CrossFade,
		renderType:  m.RenderType,
		renderQueue: m.RenderQueue,
	}
}

func (m *Material) restore(s materialState) {
	m.CrossFade = s.crossFade
	m.RenderType = s.renderType
	m.RenderQueue = s.renderQueue
}

// enableCrossFade swaps the material to its cross-fade-capable variant,
// keeping the render-type tag and queue bucket consistent with the
// shading model. Returns false for models with no fade variant.
func (m *Material) enableCrossFade() (bool, error) {
	switch m.Shading {
	case ShadingOpaque, ShadingTransparent, ShadingCutout:
	default:
		return false, nil
	}

	if m.Immutable {
		return false, fmt.Errorf("material %q is immutable", m.Name)
	}

	m.CrossFade = true
	m.RenderType = m.Shading.String()
	switch m.Shading {
	case ShadingTransparent:
		m.RenderQueue = RenderQueueTransparent
	case ShadingCutout:
		m.RenderQueue = RenderQueueAlphaTest
	default:
		m.RenderQueue = RenderQueueGeometry
	}
	return true, nil
}
