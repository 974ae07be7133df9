package relod

import "fmt"

// GroupBatch is the two-phase grouping API: the host queues candidate
// sets between BeginBatch and CommitBatch, and each object's destroys
// and material swaps commit together or roll back together. Errors are
// per object and never abort the rest of the batch.
type GroupBatch struct {
	grouper *Grouper
	scene   *Scene
	sched   *Scheduler
	probes  ProbeConfig
	logger  Logger

	open    bool
	pending []string
}

func NewGroupBatch(grouper *Grouper, scene *Scene, sched *Scheduler, probes ProbeConfig, logger Logger) *GroupBatch {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &GroupBatch{
		grouper: grouper,
		scene:   scene,
		sched:   sched,
		probes:  probes,
		logger:  logger,
	}
}

func (b *GroupBatch) BeginBatch() {
	b.open = true
	b.pending = b.pending[:0]
}

// Add queues an object for regrouping. Its current renderer set at
// commit time becomes the candidate set.
func (b *GroupBatch) Add(objectName string) error {
	if !b.open {
		return fmt.Errorf("batch not open")
	}
	if b.scene.Object(objectName) == nil {
		return fmt.Errorf("unknown object %q", objectName)
	}
	b.pending = append(b.pending, objectName)
	return nil
}

// CommitBatch regroups every queued object. Returns the number of
// objects successfully grouped.
func (b *GroupBatch) CommitBatch() int {
	if !b.open {
		return 0
	}
	b.open = false

	grouped := 0
	for _, name := range b.pending {
		if err := b.commitObject(name); err != nil {
			b.logger.Warnf("grouping %q: %v", name, err)
			continue
		}
		grouped++
	}
	b.pending = b.pending[:0]
	return grouped
}

func (b *GroupBatch) commitObject(name string) error {
	obj := b.scene.Object(name)
	if obj == nil {
		return fmt.Errorf("object no longer exists")
	}

	plan, err := b.grouper.planGroup(obj.Renderers)
	if err != nil {
		// All candidates invalid: the group entity goes away, the
		// object and its renderers stay.
		b.dropGroup(obj)
		return err
	}

	// Snapshot shared materials so a failed destroy rolls the shader
	// swaps back with it.
	snapshots := make(map[*Material]materialState, len(plan.swaps))
	for _, m := range plan.swaps {
		snapshots[m] = m.snapshot()
	}

	b.grouper.applyPlan(plan)

	for _, r := range plan.discards {
		if !obj.removeRenderer(r) {
			for m, st := range snapshots {
				m.restore(st)
			}
			return fmt.Errorf("duplicate renderer %q vanished mid-commit", r.Name)
		}
		r.destroyed = true
		if b.sched != nil {
			b.sched.unregisterRenderer(r)
		}
	}

	b.dropGroup(obj)
	obj.Group = plan.group
	b.assignVolumes(obj)

	b.logger.Infof("grouped %q: %d levels, %d duplicates removed",
		name, len(plan.group.Levels), len(plan.discards))
	return nil
}

// dropGroup removes an object's group and unregisters its volumes.
func (b *GroupBatch) dropGroup(obj *Object) {
	if b.sched != nil {
		for _, v := range obj.volumes {
			b.sched.UnregisterVolume(v)
		}
	}
	obj.volumes = nil
	obj.Group = nil
}

// assignVolumes attaches a proxy volume to every level below the primary
// whose bounds exceed the probe spacing on some axis. The primary level
// keeps its baked lightmaps; lower levels lean on interpolated probes.
func (b *GroupBatch) assignVolumes(obj *Object) {
	for i := 1; i < len(obj.Group.Levels); i++ {
		v := NewProxyVolume(obj.Group.Levels[i].Renderer, b.probes)
		if v == nil {
			continue
		}
		obj.volumes = append(obj.volumes, v)
		if b.sched != nil {
			b.sched.RegisterVolume(v)
		}
		b.logger.Debugf("proxy volume %dx%dx%d assigned to %q",
			v.Resolution[0], v.Resolution[1], v.Resolution[2], obj.Group.Levels[i].Renderer.Name)
	}
}
