package relod

// ProbeRefreshModule wires the probe-refresh scheduler into the frame
// loop: light polling and budget ticking in Prelude, visibility
// notifications in Render. Requires TimeModule and SceneModule to be
// installed first.
type ProbeRefreshModule struct {
	Config *Config
	// Refresh resamples a volume's probe grid. Nil is allowed; the
	// scheduler then only advances bookkeeping (useful for tests).
	Refresh RefreshFunc
}

func (m ProbeRefreshModule) Install(app *App, cmd *Commands) {
	cfg := m.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	tracker := NewLightChangeTracker(cfg.Lights)
	sched := NewScheduler(cfg.Scheduler, tracker, m.Refresh, app.Logger())
	cmd.AddResources(tracker, sched)

	app.UseSystem(System(trackSceneLightsSystem).InStage(Prelude))
	app.UseSystem(System(probeTickSystem).InStage(Prelude))
	app.UseSystem(System(probeVisibilitySystem).InStage(Render))
}

// trackSceneLightsSystem keeps the tracker in sync with the scene's
// light list. Baked-only lights are filtered by Track itself.
func trackSceneLightsSystem(scene *Scene, tracker *LightChangeTracker) {
	for _, l := range scene.Lights {
		tracker.Track(l)
	}
}

func probeTickSystem(clock *Time, sched *Scheduler) {
	sched.Tick(clock.Dt)
}

// probeVisibilitySystem stands in for the host's draw-list walk: for
// each camera it selects the active detail level of every grouped object
// and notifies the scheduler about that level's proxy volume. A host
// with its own culling calls Scheduler.NotifyVisible directly instead.
func probeVisibilitySystem(scene *Scene, sched *Scheduler) {
	for _, cam := range scene.Cameras {
		for _, obj := range scene.Objects() {
			if obj.Group == nil {
				continue
			}
			bounds := obj.BoundsUnion()
			level := obj.Group.ActiveLevel(cam.screenRelativeHeight(bounds))
			if level < 0 {
				// Below the culled threshold: not rendered, not refreshed.
				continue
			}
			r := obj.Group.Levels[level].Renderer
			for _, v := range obj.Volumes() {
				if v.Renderer == r {
					sched.NotifyVisible(v, cam)
				}
			}
		}
	}
}
