package cad

import (
	"bytes"
	"cad-lab/errors"
	"embed"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"text/template"
)

//go:embed templates/*.py.tmpl
var templateFS embed.FS

const cycloidSamples = 720

var scripts = template.Must(
	template.New("scripts").
		Funcs(template.FuncMap{"num": num, "isDXF": isDXF, "join": strings.Join}).
		ParseFS(templateFS, "templates/*.py.tmpl"),
)

// Descriptor tells how a shape is presented to agents and rendered.
type Descriptor struct {
	Kind        string
	Title       string
	Description string
	New         func() Shape
	// Outputs are the files the script exports, relative to its work dir.
	Outputs []string
	derive  func(Shape) (any, error)
}

var descriptors = map[string]Descriptor{}

func register(d Descriptor) {
	if len(d.Outputs) == 0 {
		d.Outputs = []string{d.Kind + ".stl"}
	}
	descriptors[d.Kind] = d
}

func init() {
	register(Descriptor{Kind: "plate", Title: "Plate", Description: "Create a CAD plate model.", New: func() Shape { return &Plate{} }})
	register(Descriptor{Kind: "box", Title: "Box", Description: "Create a CAD box model.", New: func() Shape { return &Box{} }})
	register(Descriptor{Kind: "cylinder", Title: "Cylinder", Description: "Create a CAD cylinder model.", New: func() Shape { return &Cylinder{} }})
	register(Descriptor{Kind: "cone", Title: "Cone", Description: "Create a CAD cone model.", New: func() Shape { return &Cone{} }})
	register(Descriptor{Kind: "sphere", Title: "Sphere", Description: "Create a CAD sphere model.", New: func() Shape { return &Sphere{} }})
	register(Descriptor{Kind: "plate_with_hole", Title: "Plate", Description: "Create a CAD plate with a centered hole.", New: func() Shape { return &PlateWithHole{} }})
	register(Descriptor{Kind: "torus", Title: "Torus", Description: "Create a CAD torus model.", New: func() Shape { return &Torus{} }})
	register(Descriptor{Kind: "rectangular_tube", Title: "Rectangular tube", Description: "Create a CAD rectangular tube model.", New: func() Shape { return &RectangularTube{} }})
	register(Descriptor{Kind: "cylinder_tube", Title: "Cylinder tube", Description: "Create a CAD cylinder tube model.", New: func() Shape { return &CylinderTube{} }})
	register(Descriptor{Kind: "i_beam", Title: "I beam", Description: "Create a CAD model of I beam by extruding a mirrored polyline shape.", New: func() Shape { return &IBeam{} }})
	register(Descriptor{
		Kind:        "pillow_block",
		Title:       "Pillow block",
		Description: "Create a CAD model of a pillow block with a central hole and corner counterbores.",
		New:         func() Shape { return &PillowBlock{} },
		Outputs:     []string{"pillow_block.stl", "pillow_block.step", "pillow_block.dxf"},
	})
	register(Descriptor{
		Kind:        "box_with_hex_cutouts",
		Title:       "Box with hexagonal cutouts",
		Description: "Create a CAD model of a box with hexagonal cutouts at specified points.",
		New:         func() Shape { return &BoxWithHexCutouts{} },
	})
	register(Descriptor{
		Kind:        "lego_brick",
		Title:       "LEGO-like brick",
		Description: "Create a LEGO-like brick model with customizable dimensions and thickness.",
		New:         func() Shape { return &LegoBrickParams{} },
		derive: func(s Shape) (any, error) {
			p := s.(*LegoBrickParams)
			return LegoBrick(p.LengthBumps, p.WidthBumps, p.Thin), nil
		},
	})
	register(Descriptor{
		Kind:        "gear",
		Title:       "Gear",
		Description: "Create a CAD gear model.",
		New:         func() Shape { return &GearParams{} },
		derive: func(s Shape) (any, error) {
			p := s.(*GearParams)
			return GearGeometry(p.Module, p.TeethNumber, p.Clearance, p.Backlash)
		},
	})
	register(Descriptor{
		Kind:        "cycloidal_gear",
		Title:       "Cycloidal gear",
		Description: "Create a CAD cycloidal gear model.",
		New:         func() Shape { return &CycloidalGear{} },
		derive: func(s Shape) (any, error) {
			p := s.(*CycloidalGear)
			return CycloidProfile(p.R1, p.R2, cycloidSamples), nil
		},
	})
	register(Descriptor{Kind: "bottle", Title: "Bottle", Description: "Create a CAD bottle model.", New: func() Shape { return &Bottle{} }})
	register(Descriptor{
		Kind:        "circular_base_with_cutouts",
		Title:       "Base with extruded circles",
		Description: "Create a CAD model of a circular base with smaller circles extruded at specified points.",
		New:         func() Shape { return &CircularBaseWithCutouts{} },
		Outputs:     []string{"circular_base_with_circular_cutout.stl"},
	})
	register(Descriptor{
		Kind:        "lofted_shape",
		Title:       "Lofted shape",
		Description: "Create a CAD model of a box lofted from a circle on its top face to an offset rectangle.",
		New:         func() Shape { return &LoftedShape{} },
	})
	register(Descriptor{
		Kind:        "cylinder_with_circle_and_rectangular_hole",
		Title:       "Centered shape",
		Description: "Create a CAD model with base circle, rectangle offset, and extruded small circle.",
		New:         func() Shape { return &CylinderWithHoles{} },
		Outputs:     []string{"centered_shape.stl"},
	})
	register(Descriptor{
		Kind:        "spline_extrusion",
		Title:       "Spline extrusion",
		Description: "Create a CAD model with a custom extruded spline profile.",
		New:         func() Shape { return &SplineExtrusion{} },
	})
	register(Descriptor{
		Kind:        "complex_extruded_l_shape",
		Title:       "Complex extruded shape",
		Description: "Create a CAD model of an extruded shape with defined arcs and lines, rotated and centered.",
		New:         func() Shape { return &ComplexLShape{} },
		Outputs:     []string{"complex_extruded_shape.stl"},
	})
	register(Descriptor{
		Kind:        "battery",
		Title:       "Battery",
		Description: "Create a CAD model of a battery with a cylindrical body and a cap.",
		New:         func() Shape { return &Battery{} },
		Outputs:     []string{"battery_model.stl"},
	})
	register(Descriptor{
		Kind:        "rectangular_battery",
		Title:       "Rectangular battery",
		Description: "Create a CAD model of a rectangular battery with rounded edges and top face features.",
		New:         func() Shape { return &RectangularBattery{} },
	})
	register(Descriptor{
		Kind:        "custom_box",
		Title:       "Custom box",
		Description: "Create a CAD model of an enclosure with screw posts and a separate lid held by counterbored, countersunk or plain holes.",
		New:         func() Shape { return &CustomBox{} },
	})
}

// Kinds returns the supported shapes, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(descriptors))
	for k := range descriptors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func Describe(kind string) (Descriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", errors.ErrUnknownShape, kind)
	}
	return d, nil
}

// Script is a rendered CadQuery program.
type Script struct {
	Kind     string
	Title    string
	FileName string
	Code     string
	Outputs  []string
}

type scriptData struct {
	P       Shape
	G       any
	Outputs []string
}

// Render produces the CadQuery script building shape. Values computed in Go
// are written into the script as literals.
func Render(shape Shape) (Script, error) {
	if shape == nil {
		return Script{}, fmt.Errorf("%w: nil", errors.ErrUnknownShape)
	}
	d, err := Describe(shape.Kind())
	if err != nil {
		return Script{}, err
	}
	shape = asPointer(shape)
	if ptr := d.New(); fmt.Sprintf("%T", ptr) != fmt.Sprintf("%T", shape) {
		return Script{}, fmt.Errorf("%w: %s expects %T, got %T", errors.ErrUnknownShape, d.Kind, ptr, shape)
	}

	data := scriptData{P: shape, Outputs: d.Outputs}
	if d.derive != nil {
		if data.G, err = d.derive(shape); err != nil {
			return Script{}, fmt.Errorf("computing %s geometry: %w", d.Kind, err)
		}
	}

	var buf bytes.Buffer
	if err = scripts.ExecuteTemplate(&buf, d.Kind+".py.tmpl", data); err != nil {
		return Script{}, fmt.Errorf("rendering %s script: %w", d.Kind, err)
	}
	return Script{
		Kind:     d.Kind,
		Title:    d.Title,
		FileName: d.Kind + ".py",
		Code:     buf.String(),
		Outputs:  d.Outputs,
	}, nil
}

func asPointer(s Shape) Shape {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Pointer {
		return s
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p.Interface().(Shape)
}

func isDXF(name string) bool {
	return strings.HasSuffix(name, ".dxf")
}

// num formats a float as a python literal.
func num(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'g', -1, 64)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprint(v)
	}
}
