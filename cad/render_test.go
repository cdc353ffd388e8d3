package cad

import (
	"cad-lab/errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		shape    Shape
		contains []string
		outputs  []string
	}{
		{
			name:     "Plate",
			shape:    Plate{Length: 100, Width: 50, Thickness: 2.5},
			contains: []string{`cq.Workplane("XY").box(100, 50, 2.5)`, `exporters.export(result, "plate.stl")`},
			outputs:  []string{"plate.stl"},
		},
		{
			name:     "Pillow block exports a dxf section",
			shape:    &PillowBlock{Length: 80, Height: 60, Thickness: 10, HoleDiameter: 22, CounterboreDiameter: 7, CounterboreDepth: 2, ThroughHoleDiameter: 3.4, Padding: 12},
			contains: []string{".cboreHole(3.4, 7, 2)", `exporters.export(result.section(), "pillow_block.dxf")`, `"pillow_block.step"`},
			outputs:  []string{"pillow_block.stl", "pillow_block.step", "pillow_block.dxf"},
		},
		{
			name:     "Hex cutouts list every position",
			shape:    BoxWithHexCutouts{BoxLength: 40, BoxWidth: 40, BoxHeight: 5, HexSideLength: 4, CutoutPositions: []Point{{-10, 0}, {10, 0.5}}},
			contains: []string{"positions = [(-10, 0), (10, 0.5)]"},
			outputs:  []string{"box_with_hex_cutouts.stl"},
		},
		{
			name:     "Grid lego brick has hollow posts",
			shape:    LegoBrickParams{LengthBumps: 2, WidthBumps: 4},
			contains: []string{"rarray(pitch, pitch, 1, 3, center=True)", ".circle(post_diam / 2.0)", "result = posts.union(base)"},
			outputs:  []string{"lego_brick.stl"},
		},
		{
			name:     "Single lego bump has no posts",
			shape:    LegoBrickParams{LengthBumps: 1, WidthBumps: 1, Thin: true},
			contains: []string{"height = 3.2", "result = base"},
			outputs:  []string{"lego_brick.stl"},
		},
		{
			name:     "Gear writes the computed flank points",
			shape:    GearParams{Module: 1, TeethNumber: 20, Thickness: 5, BoreDiameter: 6, PressureAngle: 20, Clearance: 0.25, Backlash: 0.05},
			contains: []string{"teeth = 20", "addendum = 22", "dedendum = 17.5", "flank_radius = 4", ".circle(6 / 2)", `exporters.export(result, "gear.stl")`},
			outputs:  []string{"gear.stl"},
		},
		{
			name:     "Cycloidal gear is a closed polyline",
			shape:    CycloidalGear{R1: 10, R2: 1, Thickness: 4},
			contains: []string{"(10, 0),", ".twistExtrude(4, 90)", ".circle(1)"},
			outputs:  []string{"cycloidal_gear.stl"},
		},
		{
			name:     "Custom box with a counterbored lid",
			shape:    CustomBox{OuterWidth: 100, OuterLength: 150, OuterHeight: 50, Thickness: 3, SideRadius: 10, TopAndBottomRadius: 2, ScrewpostInset: 12, ScrewpostID: 4, ScrewpostOD: 10, BoreDiameter: 8, BoreDepth: 1, CountersinkDiameter: 0, CountersinkAngle: 90, LipHeight: 1},
			contains: []string{"centers.cboreHole(post_id, 8, 1, 2 * thickness)", `outer.edges("|Z").fillet(side_radius).edges("#Z")`},
			outputs:  []string{"custom_box.stl"},
		},
		{
			name:     "Custom box with a countersunk flipped lid",
			shape:    CustomBox{OuterWidth: 100, OuterLength: 150, OuterHeight: 50, Thickness: 3, SideRadius: 4, TopAndBottomRadius: 5, ScrewpostInset: 12, ScrewpostID: 4, ScrewpostOD: 10, CountersinkDiameter: 8, CountersinkAngle: 90, FlipLid: true},
			contains: []string{"centers.cskHole(post_id, 8, 90, 2 * thickness)", `outer.edges("#Z").fillet(edge_radius).edges("|Z")`, "lid.rotateAboutCenter((1, 0, 0), 180)"},
			outputs:  []string{"custom_box.stl"},
		},
		{
			name:     "Spline extrusion starts from the default lines",
			shape:    SplineExtrusion{ProfilePoints: []Point{{2, 2}, {0, 1}}, ExtrusionHeight: 4},
			contains: []string{".lineTo(3, 0)", ".lineTo(3, 1)", "points = [(2, 2), (0, 1)]", ".extrude(4)"},
			outputs:  []string{"spline_extrusion.stl"},
		},
		{
			name:     "Spline extrusion with explicit lines",
			shape:    SplineExtrusion{ProfilePoints: []Point{{1, 1}}, ExtrusionHeight: 2, StartLine: &Point{5, 0}, EndLine: &Point{5, 2}},
			contains: []string{".lineTo(5, 0)", ".lineTo(5, 2)"},
			outputs:  []string{"spline_extrusion.stl"},
		},
		{
			name:     "Battery keeps its historical file name",
			shape:    Battery{BatteryLength: 65, CapHeight: 1.5, BatteryDiameter: 18},
			contains: []string{"radius = 18 / 2", ".extrude(1.5)"},
			outputs:  []string{"battery_model.stl"},
		},
		{
			name:     "Complex L shape is rotated then centered",
			shape:    ComplexLShape{ExtrusionLength: 40, RotationAngle: 90},
			contains: []string{".rotate((0, 0, 0), (1, 0, 0), 90)", "BoundingBox().center.multiply(-1)"},
			outputs:  []string{"complex_extruded_shape.stl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			script, err := Render(tt.shape)
			req.NoError(err)
			req.True(strings.HasPrefix(script.Code, "import cadquery as cq\n"))
			for _, c := range tt.contains {
				req.Contains(script.Code, c)
			}
			req.Equal(tt.outputs, script.Outputs)
			req.Equal(tt.shape.Kind()+".py", script.FileName)
		})
	}
}

func TestRender_EveryKind(t *testing.T) {
	req := require.New(t)
	req.Len(Kinds(), 24)
	for _, kind := range Kinds() {
		d, err := Describe(kind)
		req.NoError(err)
		req.NotEmpty(d.Description)
		req.Equal(kind, d.New().Kind())
	}
}

func TestCustomBox_HoleStyle(t *testing.T) {
	cases := []struct {
		name string
		box  CustomBox
		want string
	}{
		{"counterbore wins over countersink", CustomBox{BoreDiameter: 8, BoreDepth: 1, CountersinkDiameter: 8, CountersinkAngle: 90}, HoleCounterbore},
		{"counterbore needs a depth", CustomBox{BoreDiameter: 8, CountersinkDiameter: 8, CountersinkAngle: 90}, HoleCountersink},
		{"countersink needs an angle", CustomBox{CountersinkDiameter: 8}, HolePlain},
		{"nothing set", CustomBox{}, HolePlain},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.box.HoleStyle())
		})
	}
}

func TestRender_Errors(t *testing.T) {
	req := require.New(t)

	_, err := Describe("spaceship")
	req.ErrorIs(err, errors.ErrUnknownShape)

	// Given a gear whose flank circle cannot meet the dedendum circle
	_, err = Render(GearParams{Module: 1, TeethNumber: 3, Thickness: 1})
	req.ErrorIs(err, errors.ErrNoIntersection)
}
