package relod

type Commands struct {
	app *App
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

// UseSystem schedules a system in the default Update stage.
func (cmd *Commands) UseSystem(system systemFn) *Commands {
	cmd.app.UseSystem(System(system))
	return cmd
}

// DestroyRenderer buffers a renderer for removal at the end of the
// current stage. The scheduler drops any proxy volume attached to it.
func (cmd *Commands) DestroyRenderer(r *MeshRenderer) {
	if r == nil {
		return
	}
	cmd.app.pendingDestroys = append(cmd.app.pendingDestroys, r)
}
