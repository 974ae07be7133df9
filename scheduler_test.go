package relod

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// volumeAt builds a 4x4x4 (64 probe) volume centered at z along -Z.
func volumeAt(t *testing.T, name string, z float32) *ProxyVolume {
	t.Helper()
	r := NewMeshRenderer(name, &Mesh{VertexCount: 100}, nil, AABB{
		Min: mgl32.Vec3{-3, -3, z - 3},
		Max: mgl32.Vec3{3, 3, z + 3},
	})
	v := NewProxyVolume(r, ProbeConfig{Spacing: 2, MaxGridResolution: 32})
	require.NotNil(t, v)
	require.Equal(t, 64, v.ProbeCount())
	return v
}

func testCamera() *Camera {
	return NewCamera("main", mgl32.Vec3{}, 60, 720)
}

func newTestScheduler(budget int, refreshed *[]*ProxyVolume) *Scheduler {
	cfg := SchedulerConfig{
		TargetFramePeriod:  Duration(time.Second / 20),
		GainConstant:       1000,
		InitialProbeBudget: budget,
	}
	var fn RefreshFunc
	if refreshed != nil {
		fn = func(v *ProxyVolume) { *refreshed = append(*refreshed, v) }
	}
	return NewScheduler(cfg, nil, fn, NewNopLogger())
}

func TestNewProxyVolume(t *testing.T) {
	cfg := ProbeConfig{Spacing: 2, MaxGridResolution: 8}

	small := NewMeshRenderer("small", nil, nil, AABB{
		Min: mgl32.Vec3{0, 0, 0},
		Max: mgl32.Vec3{1, 1, 1},
	})
	if NewProxyVolume(small, cfg) != nil {
		t.Errorf("bounds within probe spacing should get no volume")
	}

	// One axis over the spacing is enough.
	slab := NewMeshRenderer("slab", nil, nil, AABB{
		Min: mgl32.Vec3{0, 0, 0},
		Max: mgl32.Vec3{10, 1, 1},
	})
	v := NewProxyVolume(slab, cfg)
	require.NotNil(t, v)
	assert.Equal(t, [3]int{6, 2, 2}, v.Resolution)

	huge := NewMeshRenderer("huge", nil, nil, AABB{
		Min: mgl32.Vec3{0, 0, 0},
		Max: mgl32.Vec3{100, 100, 100},
	})
	v = NewProxyVolume(huge, cfg)
	require.NotNil(t, v)
	assert.Equal(t, [3]int{8, 8, 8}, v.Resolution)
}

func TestScheduler_ScenarioBudget200(t *testing.T) {
	var refreshed []*ProxyVolume
	s := newTestScheduler(200, &refreshed)
	cam := testCamera()

	// Nearer volumes score higher; order of registration is farthest
	// first so the sort has to do real work.
	volumes := make([]*ProxyVolume, 10)
	for i := 0; i < 10; i++ {
		v := volumeAt(t, "v", float32(-100+i*9))
		volumes[i] = v
		s.RegisterVolume(v)
	}

	s.Tick(time.Second / 20)
	for _, v := range volumes {
		s.NotifyVisible(v, cam)
	}
	s.Tick(time.Second / 20)

	// 640 probes queued against a budget of 200: cumulative prefix sums
	// 0, 64, 128, 192 fit, the fifth volume at 256 does not.
	assert.Equal(t, 200, s.Stats().ProbeBudget)
	require.Len(t, refreshed, 4)

	// The four nearest (highest scoring) volumes won.
	want := map[*ProxyVolume]bool{
		volumes[9]: true, volumes[8]: true, volumes[7]: true, volumes[6]: true,
	}
	for _, v := range refreshed {
		if !want[v] {
			t.Errorf("unexpected volume refreshed at z=%v", v.Renderer.Bounds.Center().Z())
		}
	}
}

func TestScheduler_BudgetFloor(t *testing.T) {
	var refreshed []*ProxyVolume
	s := newTestScheduler(64, &refreshed)
	cam := testCamera()

	for i := 0; i < 3; i++ {
		v := volumeAt(t, "v", float32(-10-i*10))
		s.RegisterVolume(v)
	}

	s.Tick(time.Second / 20)
	for v := range s.volumes {
		s.NotifyVisible(v, cam)
	}
	// A frame that overran by far drives the budget through the floor,
	// but a non-empty queue still refreshes at least one volume.
	s.Tick(time.Second)

	assert.Equal(t, 1, s.Stats().ProbeBudget)
	assert.Equal(t, 1, s.Stats().Refreshed)
	assert.Len(t, refreshed, 1)
}

func TestScheduler_BudgetGrowsWithHeadroom(t *testing.T) {
	s := newTestScheduler(64, nil)
	cam := testCamera()

	v1 := volumeAt(t, "near", -10)
	v2 := volumeAt(t, "far", -40)
	s.RegisterVolume(v1)
	s.RegisterVolume(v2)

	s.Tick(time.Second / 20)
	s.NotifyVisible(v1, cam)
	s.NotifyVisible(v2, cam)
	// Instant frame: 50ms of headroom at gain 1000 adds 50 probes.
	s.Tick(0)

	assert.Equal(t, 64+50, s.Stats().ProbeBudget)
	assert.Equal(t, 2, s.Stats().Refreshed)
}

func TestScheduler_IdleFramesDoNotGrowBudget(t *testing.T) {
	var refreshed []*ProxyVolume
	s := newTestScheduler(64, &refreshed)
	cam := testCamera()

	v1 := volumeAt(t, "near", -10)
	v2 := volumeAt(t, "far", -40)
	s.RegisterVolume(v1)
	s.RegisterVolume(v2)

	// A long idle stretch of instant frames. With nothing queued the
	// controller must not bank the headroom.
	for i := 0; i < 1000; i++ {
		s.Tick(0)
	}
	assert.Equal(t, 64, s.Stats().ProbeBudget)

	s.NotifyVisible(v1, cam)
	s.NotifyVisible(v2, cam)
	s.Tick(time.Second / 20)

	// The first busy frame after the idle stretch spends the normal
	// budget, not an accumulated burst: 64 covers one volume, not two.
	assert.Equal(t, 64, s.Stats().ProbeBudget)
	require.Len(t, refreshed, 1)
	assert.Same(t, v1, refreshed[0])
}

func TestScheduler_BudgetClampedToDemand(t *testing.T) {
	s := newTestScheduler(10000, nil)
	cam := testCamera()

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)

	s.Tick(time.Second / 20)
	s.NotifyVisible(v, cam)
	s.Tick(time.Second / 20)

	// Budget never exceeds total queued demand.
	assert.Equal(t, 64, s.Stats().ProbeBudget)
}

func TestScheduler_AtMostOncePerFrame(t *testing.T) {
	var refreshed []*ProxyVolume
	s := newTestScheduler(10000, &refreshed)

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)

	camA := testCamera()
	camB := NewCamera("second", mgl32.Vec3{5, 0, 0}, 75, 1080)

	s.Tick(time.Second / 20)
	// Several cameras render the volume in the same frame.
	s.NotifyVisible(v, camA)
	s.NotifyVisible(v, camB)
	s.NotifyVisible(v, camA)
	s.Tick(time.Second / 20)

	assert.Len(t, refreshed, 1)
	assert.Equal(t, int64(2), v.LastUpdateFrame())
	assert.Equal(t, 1, s.Stats().Queued)
}

func TestScheduler_StaleQuiescence(t *testing.T) {
	var refreshed []*ProxyVolume

	light := NewSunLight("sun", mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 1, 1}, 1)
	tracker := NewLightChangeTracker(DefaultConfig().Lights)
	tracker.Track(light)

	cfg := SchedulerConfig{
		TargetFramePeriod:  Duration(time.Second / 20),
		GainConstant:       1000,
		InitialProbeBudget: 10000,
	}
	s := NewScheduler(cfg, tracker, func(v *ProxyVolume) { refreshed = append(refreshed, v) }, NewNopLogger())

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)
	cam := testCamera()

	for frame := 0; frame < 50; frame++ {
		s.Tick(time.Second / 20)
		s.NotifyVisible(v, cam)
	}

	// The light never changed after the first poll, so the volume gets
	// exactly its initial refresh and then goes quiet.
	assert.Len(t, refreshed, 1)
}

func TestScheduler_LightChangeTriggersRefresh(t *testing.T) {
	var refreshed []*ProxyVolume

	light := NewSunLight("sun", mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 1, 1}, 1)
	tracker := NewLightChangeTracker(DefaultConfig().Lights)
	tracker.Track(light)

	cfg := SchedulerConfig{
		TargetFramePeriod:  Duration(time.Second / 20),
		GainConstant:       1000,
		InitialProbeBudget: 10000,
	}
	s := NewScheduler(cfg, tracker, func(v *ProxyVolume) { refreshed = append(refreshed, v) }, NewNopLogger())

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)
	cam := testCamera()

	for frame := 0; frame < 10; frame++ {
		s.Tick(time.Second / 20)
		s.NotifyVisible(v, cam)
	}
	require.Len(t, refreshed, 1)

	light.Intensity = 2

	for frame := 0; frame < 10; frame++ {
		s.Tick(time.Second / 20)
		s.NotifyVisible(v, cam)
	}
	assert.Len(t, refreshed, 2)
}

func TestScheduler_NeverVisibleNeverRefreshes(t *testing.T) {
	var refreshed []*ProxyVolume

	light := NewSunLight("sun", mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 1, 1}, 1)
	tracker := NewLightChangeTracker(DefaultConfig().Lights)
	tracker.Track(light)

	cfg := SchedulerConfig{
		TargetFramePeriod:  Duration(time.Second / 20),
		GainConstant:       1000,
		InitialProbeBudget: 10000,
	}
	s := NewScheduler(cfg, tracker, func(v *ProxyVolume) { refreshed = append(refreshed, v) }, NewNopLogger())

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)

	for frame := 0; frame < 1000; frame++ {
		// Lighting churns every single frame.
		light.Intensity += 1
		s.Tick(time.Second / 20)
	}

	assert.Empty(t, refreshed)
	assert.Equal(t, int64(neverUpdated), v.LastUpdateFrame())
}

func TestScheduler_DoubleBufferedQueues(t *testing.T) {
	s := newTestScheduler(10000, nil)
	cam := testCamera()

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)

	s.Tick(time.Second / 20)
	s.NotifyVisible(v, cam)

	// The notification lands in the build queue; this frame's stats saw
	// an empty active queue.
	assert.Equal(t, 0, s.Stats().Queued)

	s.Tick(time.Second / 20)
	assert.Equal(t, 1, s.Stats().Queued)
	assert.Equal(t, 1, s.Stats().Refreshed)
}

func TestScheduler_UnregisterWhileQueued(t *testing.T) {
	var refreshed []*ProxyVolume
	s := newTestScheduler(10000, &refreshed)
	cam := testCamera()

	v := volumeAt(t, "v", -10)
	s.RegisterVolume(v)

	s.Tick(time.Second / 20)
	s.NotifyVisible(v, cam)
	s.UnregisterVolume(v)
	s.Tick(time.Second / 20)

	assert.Empty(t, refreshed)
	assert.Equal(t, 0, s.Stats().Queued)
}

func TestScheduler_NotifyUnregisteredVolumeIgnored(t *testing.T) {
	s := newTestScheduler(10000, nil)
	v := volumeAt(t, "v", -10)

	s.Tick(time.Second / 20)
	s.NotifyVisible(v, testCamera())
	s.Tick(time.Second / 20)

	assert.Equal(t, 0, s.Stats().Queued)
}
