package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	// AABBs overlap if they overlap on all three axes
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Expand returns the AABB grown by the given margin on every side
func (a AABB) Expand(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// RayIntersects tests a segment from..to against the box using the slab method.
// Returns the entry parameter t in [0,1] when the segment hits the box.
func (a AABB) RayIntersects(from, to mgl64.Vec3) (float64, bool) {
	tMin := 0.0
	tMax := 1.0

	for axis := 0; axis < 3; axis++ {
		dir := to[axis] - from[axis]
		if math.Abs(dir) < 1e-12 {
			if from[axis] < a.Min[axis] || from[axis] > a.Max[axis] {
				return 0, false
			}
			continue
		}

		invDir := 1.0 / dir
		t1 := (a.Min[axis] - from[axis]) * invDir
		t2 := (a.Max[axis] - from[axis]) * invDir
		if t1 > t2 {
			t1, t2 = t2, t1
		}

		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}
