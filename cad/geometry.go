// Package cad computes the parametric geometry of the built-in parts and
// renders the CadQuery scripts that build them.
package cad

import (
	"cad-lab/errors"
	"fmt"
	"math"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CircleIntersections returns the two crossing points of two circles, or
// nothing when they are apart, nested or identical.
func CircleIntersections(c1 Point, r1 float64, c2 Point, r2 float64) []Point {
	dx, dy := c2.X-c1.X, c2.Y-c1.Y
	d := math.Hypot(dx, dy)
	if d > r1+r2 || d < math.Abs(r1-r2) {
		return nil
	}
	if d == 0 && r1 == r2 {
		return nil
	}

	a := (r1*r1 - r2*r2 + d*d) / (2 * d)
	h := math.Sqrt(math.Max(r1*r1-a*a, 0))
	mx := c1.X + a*dx/d
	my := c1.Y + a*dy/d
	return []Point{
		{X: mx + h*dy/d, Y: my - h*dx/d},
		{X: mx - h*dy/d, Y: my + h*dx/d},
	}
}

// Gear holds the circles and flank construction points of an involute-like
// spur gear tooth. Circle values are diameters.
type Gear struct {
	Module      float64
	Teeth       int
	Pitch       float64
	Addendum    float64
	Dedendum    float64
	Base        float64
	Offset      float64
	FlankRadius float64
	FlankCenter Point
	// DedendumPoint is where the flank meets the dedendum circle (x4, y4).
	DedendumPoint Point
	// AddendumPoint is where the flank meets the addendum circle (x5, y5).
	AddendumPoint Point
}

func GearGeometry(module float64, teeth int, clearance, backlash float64) (Gear, error) {
	if module <= 0 || teeth < 3 {
		return Gear{}, fmt.Errorf("gear needs a positive module and at least 3 teeth, got %.3f and %d", module, teeth)
	}
	z := float64(teeth)
	g := Gear{
		Module: module,
		Teeth:  teeth,
		Pitch:  module * z,
	}
	g.Addendum = g.Pitch + 2*module
	g.Dedendum = g.Pitch - 2.5*module
	g.Base = g.Dedendum + 2*clearance

	diametralPitch := 1 / module
	theta := radians(180 / z)
	g.Offset = z/diametralPitch*math.Sin(math.Pi/2/z)/2 - 7*backlash/4
	g.FlankRadius = z / diametralPitch / 5

	theta3 := math.Pi*theta + radians(90)
	g.FlankCenter = Point{
		X: g.Base / 2 * math.Cos(theta3),
		Y: g.Base / 2 * math.Sin(theta3),
	}

	origin := Point{}
	dedendum := CircleIntersections(origin, g.Dedendum/2, g.FlankCenter, g.FlankRadius)
	if len(dedendum) == 0 {
		return Gear{}, fmt.Errorf("%w: flank misses the dedendum circle", errors.ErrNoIntersection)
	}
	addendum := CircleIntersections(origin, g.Addendum/2, g.FlankCenter, g.FlankRadius)
	if len(addendum) == 0 {
		return Gear{}, fmt.Errorf("%w: flank misses the addendum circle", errors.ErrNoIntersection)
	}
	g.DedendumPoint = dedendum[0]
	g.AddendumPoint = addendum[0]
	return g, nil
}

// CycloidProfile samples the closed cycloidal gear outline. Each lobe
// alternates between an epicycloid and a hypocycloid arc.
func CycloidProfile(r1, r2 float64, samples int) []Point {
	if r2 <= 0 || samples < 3 {
		return nil
	}
	ratio := r1 / r2
	points := make([]Point, 0, samples)
	for i := 0; i < samples; i++ {
		t := float64(i) / float64(samples) * 2 * math.Pi
		lobe := math.Floor(t / 2 / math.Pi * ratio)
		if math.Pow(-1, 1+lobe) < 0 {
			points = append(points, Point{
				X: (r1+r2)*math.Cos(t) - r2*math.Cos(ratio*t+t),
				Y: (r1+r2)*math.Sin(t) - r2*math.Sin(ratio*t+t),
			})
			continue
		}
		points = append(points, Point{
			X: (r1-r2)*math.Cos(t) + r2*math.Cos(ratio*t-t),
			Y: (r1-r2)*math.Sin(t) + r2*math.Sin(-(ratio*t - t)),
		})
	}
	return points
}

type PostLayout string

const (
	PostsNone PostLayout = "none"
	// PostsGrid places hollow posts between every bump.
	PostsGrid PostLayout = "grid"
	// PostsRow places thin solid posts along a single row.
	PostsRow PostLayout = "row"
)

const (
	legoPitch      = 8.0
	legoClearance  = 0.1
	legoBumpDiam   = 4.8
	legoBumpHeight = 1.8
	legoThinHeight = 3.2
	legoHeight     = 9.6
)

// Lego is the derived geometry of a LEGO-like brick.
type Lego struct {
	LengthBumps int
	WidthBumps  int
	Pitch       float64
	Clearance   float64
	BumpDiam    float64
	BumpHeight  float64
	Height      float64
	Wall        float64
	PostDiam    float64
	TotalLength float64
	TotalWidth  float64
	Posts       PostLayout
	PostCols    int
	PostRows    int
}

func LegoBrick(lbumps, wbumps int, thin bool) Lego {
	l := Lego{
		LengthBumps: lbumps,
		WidthBumps:  wbumps,
		Pitch:       legoPitch,
		Clearance:   legoClearance,
		BumpDiam:    legoBumpDiam,
		BumpHeight:  legoBumpHeight,
		Height:      legoHeight,
		Posts:       PostsNone,
	}
	if thin {
		l.Height = legoThinHeight
	}
	l.Wall = (l.Pitch - 2*l.Clearance - l.BumpDiam) / 2
	l.PostDiam = l.Pitch - l.Wall
	l.TotalLength = float64(lbumps)*l.Pitch - 2*l.Clearance
	l.TotalWidth = float64(wbumps)*l.Pitch - 2*l.Clearance

	switch {
	case lbumps > 1 && wbumps > 1:
		l.Posts, l.PostCols, l.PostRows = PostsGrid, lbumps-1, wbumps-1
	case lbumps > 1:
		l.Posts, l.PostCols, l.PostRows = PostsRow, lbumps-1, 1
	case wbumps > 1:
		l.Posts, l.PostCols, l.PostRows = PostsRow, 1, wbumps-1
	}
	return l
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
