package relod

import (
	"math"

	"github.com/google/uuid"
)

// notScheduled marks a volume with no position in the current frame's
// schedule.
const notScheduled = -1

// neverUpdated is the lastUpdateFrame of a volume that has not been
// refreshed yet; a first refresh is always owed.
const neverUpdated = -1

// ProxyVolume is a light-probe interpolation volume attached to a
// low-detail renderer. The probe grid is fixed at creation; the
// scheduler owns all frame-stamped state.
type ProxyVolume struct {
	Id         string
	Renderer   *MeshRenderer
	Resolution [3]int

	lastUpdateFrame      int64
	lastEnqueuedFrame    int64
	lastLightChangeFrame int64
	queueScore           float32
	priorCount           int
}

// ProbeCount is the scheduler's cost unit: total samples in the grid.
func (v *ProxyVolume) ProbeCount() int {
	return v.Resolution[0] * v.Resolution[1] * v.Resolution[2]
}

func (v *ProxyVolume) LastUpdateFrame() int64 {
	return v.lastUpdateFrame
}

// NewProxyVolume sizes a probe grid for the renderer's bounds, one probe
// interval per spacing unit. Returns nil when the bounds do not exceed
// the spacing on any axis: such renderers are lit well enough by a
// single probe sample and need no volume.
func NewProxyVolume(r *MeshRenderer, cfg ProbeConfig) *ProxyVolume {
	if r == nil {
		return nil
	}
	size := r.Bounds.Size()
	if size.X() <= cfg.Spacing && size.Y() <= cfg.Spacing && size.Z() <= cfg.Spacing {
		return nil
	}

	var res [3]int
	for axis := 0; axis < 3; axis++ {
		n := int(math.Ceil(float64(size[axis]/cfg.Spacing))) + 1
		if n < 1 {
			n = 1
		}
		if cfg.MaxGridResolution > 0 && n > cfg.MaxGridResolution {
			n = cfg.MaxGridResolution
		}
		res[axis] = n
	}

	return &ProxyVolume{
		Id:                uuid.NewString(),
		Renderer:          r,
		Resolution:        res,
		lastUpdateFrame:   neverUpdated,
		lastEnqueuedFrame: notScheduled,
		priorCount:        notScheduled,
	}
}
