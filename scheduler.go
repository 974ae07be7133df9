package relod

import (
	"math"
	"slices"
	"time"
)

// RefreshFunc performs the actual probe refresh for a volume: the host
// resamples the volume's probe grid against current lighting.
type RefreshFunc func(*ProxyVolume)

// SchedulerStats are the previous Tick's counters, for host logging.
type SchedulerStats struct {
	Frame           int64
	Queued          int
	QueuedProbes    int
	Refreshed       int
	RefreshedProbes int
	ProbeBudget     int
}

// Scheduler decides, each frame, which proxy volumes to refresh under a
// soft probe-count budget. One instance per render context; all state is
// explicit, nothing is package-global.
//
// The model is single-threaded and cooperative: Tick runs once at the
// start of a frame and consumes the visibility notifications accumulated
// during the previous frame's render passes. If the host parallelizes
// multi-camera rendering it must join all NotifyVisible calls before the
// next Tick.
type Scheduler struct {
	logger  Logger
	tracker *LightChangeTracker
	refresh RefreshFunc

	targetPeriod time.Duration
	gain         float64
	probeBudget  int

	frame           int64
	lastLightChange int64

	volumes map[*ProxyVolume]struct{}
	// Double-buffered queues: notifications fill buildQueue while Tick
	// budgets over activeQueue, so scoring never depends on notification
	// arrival order within a frame.
	buildQueue  []*ProxyVolume
	activeQueue []*ProxyVolume

	stats SchedulerStats
}

func NewScheduler(cfg SchedulerConfig, tracker *LightChangeTracker, refresh RefreshFunc, logger Logger) *Scheduler {
	if logger == nil {
		logger = NewNopLogger()
	}
	budget := cfg.InitialProbeBudget
	if budget < 1 {
		budget = 1
	}
	return &Scheduler{
		logger:       logger,
		tracker:      tracker,
		refresh:      refresh,
		targetPeriod: cfg.TargetFramePeriod.Std(),
		gain:         cfg.GainConstant,
		probeBudget:  budget,
		volumes:      make(map[*ProxyVolume]struct{}),
	}
}

func (s *Scheduler) Frame() int64 {
	return s.frame
}

func (s *Scheduler) Stats() SchedulerStats {
	return s.stats
}

func (s *Scheduler) VolumeCount() int {
	return len(s.volumes)
}

// RegisterVolume starts managing a volume. A freshly registered volume
// owes its first refresh regardless of light activity.
func (s *Scheduler) RegisterVolume(v *ProxyVolume) {
	if v == nil {
		return
	}
	if _, ok := s.volumes[v]; ok {
		return
	}
	v.lastUpdateFrame = neverUpdated
	v.lastEnqueuedFrame = notScheduled
	v.lastLightChangeFrame = s.frame
	v.priorCount = notScheduled
	s.volumes[v] = struct{}{}
}

func (s *Scheduler) UnregisterVolume(v *ProxyVolume) {
	delete(s.volumes, v)
}

func (s *Scheduler) unregisterRenderer(r *MeshRenderer) {
	for v := range s.volumes {
		if v.Renderer == r {
			delete(s.volumes, v)
		}
	}
}

// NotifyVisible records that cam will render v this frame. Called once
// per volume per camera by the host's draw-list walk; the volume is
// enqueued at most once per frame, keeping the max camera score.
func (s *Scheduler) NotifyVisible(v *ProxyVolume, cam *Camera) {
	if v == nil || cam == nil {
		return
	}
	if _, ok := s.volumes[v]; !ok {
		return
	}
	// No refresh is owed unless a tracked light changed after the last
	// update. Culled or quiescent volumes stay stale for free.
	if v.lastLightChangeFrame <= v.lastUpdateFrame {
		return
	}

	score := float32(s.frame-v.lastUpdateFrame) * cam.visibilityScore(v.Renderer.Bounds)

	if v.lastEnqueuedFrame == s.frame {
		if score > v.queueScore {
			v.queueScore = score
		}
		return
	}
	v.lastEnqueuedFrame = s.frame
	v.queueScore = score
	s.buildQueue = append(s.buildQueue, v)
}

// Tick runs the per-frame schedule: poll lights, swap queues, rank the
// active queue, adjust the probe budget against the frame delta, and
// refresh every volume whose prefix cost fits.
func (s *Scheduler) Tick(dt time.Duration) {
	s.frame++

	if s.tracker != nil && s.tracker.Changed() {
		s.lastLightChange = s.frame
		for v := range s.volumes {
			v.lastLightChangeFrame = s.frame
		}
	}

	// Queue swap happens-before any of this frame's notifications and
	// after all of the previous frame's; the active queue is complete
	// before scoring starts.
	s.activeQueue, s.buildQueue = s.buildQueue, s.activeQueue[:0]

	// Drop volumes unregistered since they were enqueued.
	live := s.activeQueue[:0]
	for _, v := range s.activeQueue {
		if _, ok := s.volumes[v]; ok {
			live = append(live, v)
		}
	}
	s.activeQueue = live

	// Highest priority first: longest neglected, most visible.
	slices.SortStableFunc(s.activeQueue, func(a, b *ProxyVolume) int {
		switch {
		case a.queueScore > b.queueScore:
			return -1
		case a.queueScore < b.queueScore:
			return 1
		default:
			return 0
		}
	})

	totalProbes := 0
	for _, v := range s.activeQueue {
		v.priorCount = totalProbes
		totalProbes += v.ProbeCount()
	}

	// Integral controller: spend frame-time headroom on more probes,
	// give budget back when the frame overran. An empty queue leaves
	// the budget untouched so idle frames cannot bank a refresh burst.
	if totalProbes > 0 {
		headroom := (s.targetPeriod - dt).Seconds()
		s.probeBudget += int(math.Floor(headroom * s.gain))
		if s.probeBudget < 1 {
			s.probeBudget = 1
		}
		if s.probeBudget > totalProbes {
			s.probeBudget = totalProbes
		}
	}

	stats := SchedulerStats{
		Frame:        s.frame,
		Queued:       len(s.activeQueue),
		QueuedProbes: totalProbes,
		ProbeBudget:  s.probeBudget,
	}

	for _, v := range s.activeQueue {
		if v.priorCount == notScheduled {
			continue
		}
		if v.priorCount < s.probeBudget {
			if s.refresh != nil {
				s.refresh(v)
			}
			v.lastUpdateFrame = s.frame
			stats.Refreshed++
			stats.RefreshedProbes += v.ProbeCount()
		}
		v.priorCount = notScheduled
	}

	s.stats = stats

	if stats.Refreshed > 0 {
		s.logger.Debugf("probe refresh: %d/%d volumes, %d/%d probes, budget %d",
			stats.Refreshed, stats.Queued, stats.RefreshedProbes, stats.QueuedProbes, stats.ProbeBudget)
	}
}
