package relod

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// AABB is a world-space axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the full extent on each axis.
func (b AABB) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Radius is the bounding-sphere radius, half the box diagonal.
func (b AABB) Radius() float32 {
	d := b.Size()
	return float32(math.Sqrt(float64(d.Dot(d)))) * 0.5
}

func (b AABB) Union(o AABB) AABB {
	return AABB{
		Min: mgl32.Vec3{
			min(b.Min.X(), o.Min.X()),
			min(b.Min.Y(), o.Min.Y()),
			min(b.Min.Z(), o.Min.Z()),
		},
		Max: mgl32.Vec3{
			max(b.Max.X(), o.Max.X()),
			max(b.Max.Y(), o.Max.Y()),
			max(b.Max.Z(), o.Max.Z()),
		},
	}
}

// Mesh carries the density measure the grouper sorts by.
type Mesh struct {
	Name        string
	VertexCount int
}

type RendererId string

func newRendererId() RendererId {
	return RendererId(uuid.NewString())
}

// MeshRenderer is one drawable: a mesh, a shared material, world bounds,
// and the baked-lighting weight the grouper assigns.
type MeshRenderer struct {
	Id       RendererId
	Name     string
	Mesh     *Mesh
	Material *Material
	Bounds   AABB

	// Nominal baked-lighting weight at full size. Baking multiplies this
	// by the screen transition height so lower levels contribute less
	// lightmap resolution.
	LightmapScale float32

	destroyed bool
}

func NewMeshRenderer(name string, mesh *Mesh, material *Material, bounds AABB) *MeshRenderer {
	return &MeshRenderer{
		Id:       newRendererId(),
		Name:     name,
		Mesh:     mesh,
		Material: material,
		Bounds:   bounds,
	}
}

func (r *MeshRenderer) Destroyed() bool {
	return r.destroyed
}

// Object is one logical scene object: the renderers discovered for it,
// and after grouping, its detail group and any proxy volumes.
type Object struct {
	Name      string
	Renderers []*MeshRenderer
	Group     *DetailGroup
	volumes   []*ProxyVolume
}

func (o *Object) AddRenderer(r *MeshRenderer) *Object {
	o.Renderers = append(o.Renderers, r)
	return o
}

func (o *Object) Volumes() []*ProxyVolume {
	return o.volumes
}

// Bounds unions all renderer bounds. Zero box when the object is empty.
func (o *Object) BoundsUnion() AABB {
	if len(o.Renderers) == 0 {
		return AABB{}
	}
	b := o.Renderers[0].Bounds
	for _, r := range o.Renderers[1:] {
		b = b.Union(r.Bounds)
	}
	return b
}

func (o *Object) removeRenderer(target *MeshRenderer) bool {
	for i, r := range o.Renderers {
		if r == target {
			o.Renderers = append(o.Renderers[:i], o.Renderers[i+1:]...)
			return true
		}
	}
	return false
}

// Scene is the registry of objects, cameras, and lights that the grouper
// and scheduler operate over.
type Scene struct {
	logger  Logger
	objects map[string]*Object
	order   []string
	Cameras []*Camera
	Lights  []*Light
}

func NewScene(logger Logger) *Scene {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Scene{
		logger:  logger,
		objects: make(map[string]*Object),
	}
}

// AddObject returns the named object, creating it if needed. Discovery
// keys objects by path name, so repeated imports land on one object.
func (s *Scene) AddObject(name string) *Object {
	if obj, ok := s.objects[name]; ok {
		return obj
	}
	obj := &Object{Name: name}
	s.objects[name] = obj
	s.order = append(s.order, name)
	return obj
}

func (s *Scene) Object(name string) *Object {
	return s.objects[name]
}

// Objects returns objects in insertion order.
func (s *Scene) Objects() []*Object {
	res := make([]*Object, 0, len(s.order))
	for _, name := range s.order {
		res = append(res, s.objects[name])
	}
	return res
}

func (s *Scene) AddCamera(cam *Camera) *Scene {
	s.Cameras = append(s.Cameras, cam)
	return s
}

func (s *Scene) AddLight(l *Light) *Scene {
	s.Lights = append(s.Lights, l)
	return s
}

// RemoveObject drops the object and unregisters its proxy volumes.
func (s *Scene) RemoveObject(name string, sched *Scheduler) {
	obj, ok := s.objects[name]
	if !ok {
		return
	}
	if sched != nil {
		for _, v := range obj.volumes {
			sched.UnregisterVolume(v)
		}
	}
	delete(s.objects, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Scene) removeRenderer(target *MeshRenderer) {
	for _, name := range s.order {
		if s.objects[name].removeRenderer(target) {
			return
		}
	}
}

// SceneModule installs an empty Scene resource.
type SceneModule struct {
}

func (m SceneModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(NewScene(app.Logger()))
}
