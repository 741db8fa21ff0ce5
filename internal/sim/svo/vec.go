package svo

import "math"

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func V3(x, y, z int) Vec3i { return Vec3i{X: x, Y: y, Z: z} }
func Splat(v int) Vec3i    { return Vec3i{X: v, Y: v, Z: v} }

func (a Vec3i) Add(b Vec3i) Vec3i { return Vec3i{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3i) Sub(b Vec3i) Vec3i { return Vec3i{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3i) Mul(k int) Vec3i   { return Vec3i{a.X * k, a.Y * k, a.Z * k} }

func (a Vec3i) Min(b Vec3i) Vec3i {
	return Vec3i{min(a.X, b.X), min(a.Y, b.Y), min(a.Z, b.Z)}
}

func (a Vec3i) Max(b Vec3i) Vec3i {
	return Vec3i{max(a.X, b.X), max(a.Y, b.Y), max(a.Z, b.Z)}
}

// Axis returns the component along ax.
func (a Vec3i) Axis(ax Axis) int {
	switch ax {
	case AxisX:
		return a.X
	case AxisY:
		return a.Y
	default:
		return a.Z
	}
}

func (a Vec3i) WithAxis(ax Axis, v int) Vec3i {
	switch ax {
	case AxisX:
		a.X = v
	case AxisY:
		a.Y = v
	default:
		a.Z = v
	}
	return a
}

func (a Vec3i) Float() Vec3f { return Vec3f{float64(a.X), float64(a.Y), float64(a.Z)} }

type Vec3f struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (a Vec3f) Add(b Vec3f) Vec3f       { return Vec3f{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3f) Sub(b Vec3f) Vec3f       { return Vec3f{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3f) Scale(k float64) Vec3f   { return Vec3f{a.X * k, a.Y * k, a.Z * k} }
func (a Vec3f) LengthSquared() float64  { return a.X*a.X + a.Y*a.Y + a.Z*a.Z }
func (a Vec3f) Floor() Vec3i            { return Vec3i{floorInt(a.X), floorInt(a.Y), floorInt(a.Z)} }
func (a Vec3f) Ceil() Vec3i             { return Vec3i{ceilInt(a.X), ceilInt(a.Y), ceilInt(a.Z)} }
func (a Vec3f) Round() Vec3i            { return Vec3i{int(math.Round(a.X)), int(math.Round(a.Y)), int(math.Round(a.Z))} }

func floorInt(f float64) int { return int(math.Floor(f)) }
func ceilInt(f float64) int  { return int(math.Ceil(f)) }

// Aabb is an axis-aligned box spanning [From, To].
type Aabb struct {
	From Vec3f `json:"from"`
	To   Vec3f `json:"to"`
}

func NewAabb(from, to Vec3f) Aabb { return Aabb{From: from, To: to} }

func (b Aabb) Intersects(o Aabb) bool {
	return b.From.X < o.To.X && b.To.X > o.From.X &&
		b.From.Y < o.To.Y && b.To.Y > o.From.Y &&
		b.From.Z < o.To.Z && b.To.Z > o.From.Z
}

// Axis names one of the three world axes.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

// Unit returns the unit vector along a.
func (a Axis) Unit() Vec3i {
	return Vec3i{}.WithAxis(a, 1)
}
