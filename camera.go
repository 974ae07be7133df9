package relod

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the view collaborator: only the fields the visibility-score
// and screen-height formulas need.
type Camera struct {
	Name        string
	Position    mgl32.Vec3
	FovYDegrees float32
	PixelHeight int
}

func NewCamera(name string, position mgl32.Vec3, fovYDegrees float32, pixelHeight int) *Camera {
	return &Camera{
		Name:        name,
		Position:    position,
		FovYDegrees: fovYDegrees,
		PixelHeight: pixelHeight,
	}
}

// focalPixelScale converts world-height-over-distance into pixels:
// pixelHeight / (2 * tan(fov/2)).
func (c *Camera) focalPixelScale() float32 {
	halfFov := float64(mgl32.DegToRad(c.FovYDegrees)) * 0.5
	t := math.Tan(halfFov)
	if t <= 0 {
		return 0
	}
	return float32(float64(c.PixelHeight) / (2 * t))
}

// visibilityScore approximates on-screen pixel coverage of bounds:
// (focalPixelScale^2 * radius^2) / distance^2.
func (c *Camera) visibilityScore(bounds AABB) float32 {
	r := bounds.Radius()
	d := bounds.Center().Sub(c.Position)
	d2 := d.Dot(d)
	fs := c.focalPixelScale()
	if d2 <= 1e-12 {
		// Camera inside the bounds: full coverage.
		return fs * fs
	}
	return fs * fs * r * r / d2
}

// screenRelativeHeight is the fraction of vertical screen resolution the
// bounding sphere covers: 2r * focal / distance / pixelHeight, which
// reduces to r / (tan(fov/2) * distance).
func (c *Camera) screenRelativeHeight(bounds AABB) float32 {
	if c.PixelHeight <= 0 {
		return 0
	}
	d := bounds.Center().Sub(c.Position)
	dist := float32(math.Sqrt(float64(d.Dot(d))))
	if dist <= 1e-6 {
		return 1
	}
	return 2 * bounds.Radius() * c.focalPixelScale() / (dist * float32(c.PixelHeight))
}
