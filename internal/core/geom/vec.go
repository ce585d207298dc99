package geom

import "math"

// Vec2 is a position or direction on the arena floor (x, z in world units).
type Vec2 struct {
	X float64 `msgpack:"x" json:"x" yaml:"x"`
	Y float64 `msgpack:"y" json:"y" yaml:"y"`
}

func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (v Vec2) Add(o Vec2) Vec2       { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2       { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2  { return Vec2{v.X * k, v.Y * k} }
func (v Vec2) Dot(o Vec2) float64    { return v.X*o.X + v.Y*o.Y }
func (v Vec2) LenSq() float64        { return v.X*v.X + v.Y*v.Y }
func (v Vec2) Len() float64          { return math.Sqrt(v.LenSq()) }
func (v Vec2) Dist(o Vec2) float64   { return v.Sub(o).Len() }
func (v Vec2) DistSq(o Vec2) float64 { return v.Sub(o).LenSq() }
func (v Vec2) IsZero() bool          { return v.X == 0 && v.Y == 0 }

// Norm returns the unit vector, or zero for a zero vector.
func (v Vec2) Norm() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Lerp blends from v toward o by t in [0,1].
func (v Vec2) Lerp(o Vec2, t float64) Vec2 {
	if t <= 0 {
		return v
	}
	if t >= 1 {
		return o
	}
	return Vec2{v.X + (o.X-v.X)*t, v.Y + (o.Y-v.Y)*t}
}

// MoveToward steps from v toward target by at most step, never overshooting.
func (v Vec2) MoveToward(target Vec2, step float64) Vec2 {
	d := target.Sub(v)
	l := d.Len()
	if l <= step || l == 0 {
		return target
	}
	return v.Add(d.Scale(step / l))
}
