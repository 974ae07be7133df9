package relod

// DetailModule installs the LOD grouper and its batch API. Install after
// SceneModule (and ProbeRefreshModule, when proxy volumes should be
// assigned at grouping time).
type DetailModule struct {
	Config *Config
}

func (m DetailModule) Install(app *App, cmd *Commands) {
	cfg := m.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := app.Logger()
	grouper := NewGrouper(cfg.Detail, logger)
	cmd.AddResources(grouper)

	scene := resourceOf[Scene](app)
	if scene == nil {
		logger.Warnf("DetailModule installed without SceneModule; batch API unavailable")
		return
	}
	sched := resourceOf[Scheduler](app)
	cmd.AddResources(NewGroupBatch(grouper, scene, sched, cfg.Probes, logger))
}
