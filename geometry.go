package strata

import "github.com/go-gl/mathgl/mgl32"

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// Contains reports whether p lies inside the box (inclusive).
func (b AABB) Contains(p mgl32.Vec3) bool {
	return p.X() >= b.Min.X() && p.X() <= b.Max.X() &&
		p.Y() >= b.Min.Y() && p.Y() <= b.Max.Y() &&
		p.Z() >= b.Min.Z() && p.Z() <= b.Max.Z()
}

// Plane is a half-space in the form Normal·p + D >= 0.
type Plane struct {
	Normal mgl32.Vec3
	D      float32
}

// Frustum is six planes with normals pointing inward. The zero Frustum
// accepts everything.
type Frustum [6]Plane

// IntersectsAABB reports whether the box is at least partially inside the
// frustum, using the positive-vertex test per plane.
func (f Frustum) IntersectsAABB(b AABB) bool {
	for _, p := range f {
		v := mgl32.Vec3{b.Min.X(), b.Min.Y(), b.Min.Z()}
		if p.Normal.X() >= 0 {
			v[0] = b.Max.X()
		}
		if p.Normal.Y() >= 0 {
			v[1] = b.Max.Y()
		}
		if p.Normal.Z() >= 0 {
			v[2] = b.Max.Z()
		}
		if p.Normal.Dot(v)+p.D < 0 {
			return false
		}
	}
	return true
}
