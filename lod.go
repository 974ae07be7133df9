package relod

import (
	"errors"
	"math"
	"slices"
)

// ErrEmptyGroup means no usable detail level remained after filtering
// and duplicate collapse. The caller destroys the owning group entity.
var ErrEmptyGroup = errors.New("no detail levels remain")

// DetailLevel is one renderable representation of an object at a
// specific geometric density.
type DetailLevel struct {
	Renderer    *MeshRenderer
	VertexCount int
	// Fraction of vertical screen coverage below which this level yields
	// to the next.
	TransitionHeight float32
	// Fraction of the transition range over which cross-fade blending
	// occurs. Derived, never set directly.
	FadeWidth float32
}

// DetailGroup is the ordered LOD list for one object. Level 0 is the
// highest detail; vertex counts strictly decrease.
type DetailGroup struct {
	Levels []DetailLevel
}

// transitionHeight computes the screen-relative threshold for level i of
// n: 0.5^(i+1), except the last level which culls at culledHeight.
func transitionHeight(i, n int, culledHeight float32) float32 {
	if i == n-1 {
		return culledHeight
	}
	return float32(math.Pow(0.5, float64(i+1)))
}

// fadeWidth sizes the crossfade band inside level i's visible range,
// proportional to the adjacency gap to the next level:
// nominal * (height - next) / (prev - height), with boundary heights 1.0
// before level 0 and 0.0 after the last.
func fadeWidth(prev, height, next, nominal float32) float32 {
	den := prev - height
	if den <= 0 {
		return 0
	}
	return nominal * (height - next) / den
}

// ActiveLevel returns the index of the level covering relHeight, or -1
// when the object is below the culled threshold.
func (g *DetailGroup) ActiveLevel(relHeight float32) int {
	n := len(g.Levels)
	if n == 0 {
		return -1
	}
	if relHeight < g.Levels[n-1].TransitionHeight {
		return -1
	}
	for i := 0; i < n-1; i++ {
		if relHeight >= g.Levels[i].TransitionHeight {
			return i
		}
	}
	return n - 1
}

// Grouper builds detail groups from candidate renderer sets.
type Grouper struct {
	culledHeight float32
	nominalFade  float32
	logger       Logger
}

func NewGrouper(cfg DetailConfig, logger Logger) *Grouper {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Grouper{
		culledHeight: cfg.CulledHeight,
		nominalFade:  cfg.NominalFadeFraction,
		logger:       logger,
	}
}

// groupPlan is the staged outcome of grouping one candidate set: the
// levels to keep, the duplicates to destroy, and the material swaps to
// apply. Nothing is mutated until the plan commits.
type groupPlan struct {
	group    *DetailGroup
	discards []*MeshRenderer
	swaps    []*Material
}

// BuildDetailGroup groups candidates into an ordered LOD list and applies
// all side effects immediately: lightmap scales, material swaps. The
// discarded duplicate renderers are returned for the caller to destroy.
func (g *Grouper) BuildDetailGroup(candidates []*MeshRenderer) (*DetailGroup, []*MeshRenderer, error) {
	plan, err := g.planGroup(candidates)
	if err != nil {
		return nil, nil, err
	}
	g.applyPlan(plan)
	return plan.group, plan.discards, nil
}

func (g *Grouper) planGroup(candidates []*MeshRenderer) (*groupPlan, error) {
	// Renderers without a density source are warned about and skipped;
	// a partial group is still valid.
	usable := make([]*MeshRenderer, 0, len(candidates))
	for _, r := range candidates {
		if r == nil {
			continue
		}
		if r.Mesh == nil || r.Mesh.VertexCount < 1 {
			g.logger.Warnf("renderer %q has no density source, excluded from grouping", r.Name)
			continue
		}
		usable = append(usable, r)
	}

	slices.SortStableFunc(usable, func(a, b *MeshRenderer) int {
		return a.Mesh.VertexCount - b.Mesh.VertexCount
	})

	// Repeated re-import produces redundant identical-density meshes;
	// keep the first of each run, destroy the rest.
	plan := &groupPlan{}
	kept := usable[:0]
	for i, r := range usable {
		if i > 0 && r.Mesh.VertexCount == kept[len(kept)-1].Mesh.VertexCount {
			g.logger.Infof("duplicate LOD removed: %q (%d vertices)", r.Name, r.Mesh.VertexCount)
			plan.discards = append(plan.discards, r)
			continue
		}
		kept = append(kept, r)
	}

	if len(kept) == 0 {
		return nil, ErrEmptyGroup
	}

	slices.Reverse(kept)

	n := len(kept)
	group := &DetailGroup{Levels: make([]DetailLevel, n)}
	for i, r := range kept {
		group.Levels[i] = DetailLevel{
			Renderer:         r,
			VertexCount:      r.Mesh.VertexCount,
			TransitionHeight: transitionHeight(i, n, g.culledHeight),
		}
	}
	for i := range group.Levels {
		prev := float32(1.0)
		if i > 0 {
			prev = group.Levels[i-1].TransitionHeight
		}
		next := float32(0.0)
		if i+1 < n {
			next = group.Levels[i+1].TransitionHeight
		}
		group.Levels[i].FadeWidth = fadeWidth(prev, group.Levels[i].TransitionHeight, next, g.nominalFade)
	}

	seen := make(map[*Material]struct{})
	for _, r := range kept {
		if r.Material == nil {
			continue
		}
		if _, ok := seen[r.Material]; ok {
			continue
		}
		seen[r.Material] = struct{}{}
		plan.swaps = append(plan.swaps, r.Material)
	}

	plan.group = group
	return plan, nil
}

// applyPlan commits the non-destructive side effects of a plan: lightmap
// scale assignment and material variant swaps. Renderer destruction is
// the caller's responsibility.
func (g *Grouper) applyPlan(plan *groupPlan) {
	for i := range plan.group.Levels {
		plan.group.Levels[i].Renderer.LightmapScale = 1.0
	}
	for _, m := range plan.swaps {
		swapped, err := m.enableCrossFade()
		if err != nil {
			g.logger.Warnf("cross-fade swap skipped: %v", err)
			continue
		}
		if swapped {
			g.logger.Debugf("material %q swapped to cross-fade variant (%s, queue %d)",
				m.Name, m.RenderType, m.RenderQueue)
		}
	}
}
