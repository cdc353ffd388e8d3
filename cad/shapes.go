package cad

// Shape is the parameter set of one built-in part.
type Shape interface {
	Kind() string
}

type Plate struct {
	Length    float64 `json:"length" desc:"Length of the plate" validate:"gt=0"`
	Width     float64 `json:"width" desc:"Width of the plate" validate:"gt=0"`
	Thickness float64 `json:"thickness" desc:"Thickness of the plate" validate:"gt=0"`
}

type Box struct {
	Width  float64 `json:"width" desc:"Width of the box" validate:"gt=0"`
	Height float64 `json:"height" desc:"Height of the box" validate:"gt=0"`
	Depth  float64 `json:"depth" desc:"Depth of the box" validate:"gt=0"`
}

type Cylinder struct {
	Radius float64 `json:"radius" desc:"Radius of the cylinder" validate:"gt=0"`
	Height float64 `json:"height" desc:"Height of the cylinder" validate:"gt=0"`
}

type Cone struct {
	BaseRadius float64 `json:"base_radius" desc:"Radius of the cone base" validate:"gt=0"`
	Height     float64 `json:"height" desc:"Height of the cone" validate:"gt=0"`
	TopRadius  float64 `json:"top_radius" desc:"Radius of the cone top" validate:"gt=0"`
}

type Sphere struct {
	Radius float64 `json:"radius" desc:"Radius of the sphere" validate:"gt=0"`
}

type PlateWithHole struct {
	Length        float64 `json:"length" desc:"Length of the plate" validate:"gt=0"`
	Width         float64 `json:"width" desc:"Width of the plate" validate:"gt=0"`
	Thickness     float64 `json:"thickness" desc:"Thickness of the plate" validate:"gt=0"`
	CenterHoleDia float64 `json:"center_hole_dia" desc:"Diameter of the center hole" validate:"gt=0,ltfield=Width"`
}

type Torus struct {
	MajorRadius float64 `json:"major_radius" desc:"Major radius (distance from torus center to tube center)" validate:"gt=0,gtfield=MinorRadius"`
	MinorRadius float64 `json:"minor_radius" desc:"Minor radius (radius of the tube)" validate:"gt=0"`
}

type RectangularTube struct {
	OuterWidth      float64 `json:"outer_width" desc:"Outer width of the tube" validate:"gt=0"`
	OuterHeight     float64 `json:"outer_height" desc:"Outer height of the tube" validate:"gt=0"`
	InnerWidth      float64 `json:"inner_width" desc:"Inner width of the tube" validate:"gt=0,ltfield=OuterWidth"`
	InnerHeight     float64 `json:"inner_height" desc:"Inner height of the tube" validate:"gt=0,ltfield=OuterHeight"`
	ExtrusionLength float64 `json:"extrusion_length" desc:"Extrusion length of the tube" validate:"gt=0"`
}

type CylinderTube struct {
	InnerRadius float64 `json:"inner_radius" desc:"Inner radius of the tube" validate:"gt=0,ltfield=OuterRadius"`
	OuterRadius float64 `json:"outer_radius" desc:"Outer radius of the tube" validate:"gt=0"`
	Height      float64 `json:"height" desc:"Height of the tube" validate:"gt=0"`
	CenterX     float64 `json:"center_x,omitempty" desc:"X-offset of the tube center"`
	CenterY     float64 `json:"center_y,omitempty" desc:"Y-offset of the tube center"`
}

type IBeam struct {
	Length    float64 `json:"length" desc:"Length of extrusion" validate:"gt=0"`
	Height    float64 `json:"height" desc:"Height of the polyline shape" validate:"gt=0"`
	Width     float64 `json:"width" desc:"Width of the polyline shape" validate:"gt=0"`
	Thickness float64 `json:"thickness" desc:"Thickness of the polyline segments" validate:"gt=0,ltfield=Width"`
}

type PillowBlock struct {
	Length              float64 `json:"length" desc:"Length of the box" validate:"gt=0"`
	Height              float64 `json:"height" desc:"Height of the box" validate:"gt=0"`
	Thickness           float64 `json:"thickness" desc:"Thickness of the box" validate:"gt=0"`
	HoleDiameter        float64 `json:"hole_diameter" desc:"Diameter of the central hole" validate:"gt=0"`
	CounterboreDiameter float64 `json:"counterbore_diameter" desc:"Diameter of the counterbore holes" validate:"gt=0,gtfield=ThroughHoleDiameter"`
	CounterboreDepth    float64 `json:"counterbore_depth" desc:"Depth of the counterbore holes" validate:"gt=0,ltfield=Thickness"`
	ThroughHoleDiameter float64 `json:"through_hole_diameter" desc:"Diameter of the through holes in counterbores" validate:"gt=0"`
	Padding             float64 `json:"padding" desc:"Padding from edges to locate counterbores" validate:"gt=0"`
}

type BoxWithHexCutouts struct {
	BoxLength       float64 `json:"box_length" desc:"Length of the box" validate:"gt=0"`
	BoxWidth        float64 `json:"box_width" desc:"Width of the box" validate:"gt=0"`
	BoxHeight       float64 `json:"box_height" desc:"Height of the box" validate:"gt=0"`
	HexSideLength   float64 `json:"hex_side_length" desc:"Side length of the hexagonal cutouts" validate:"gt=0"`
	CutoutPositions []Point `json:"cutout_positions" desc:"Positions for the hexagonal cutouts" validate:"min=1"`
}

type LegoBrickParams struct {
	LengthBumps int  `json:"lbumps" desc:"Number of bumps along the length" validate:"gte=1,lte=32"`
	WidthBumps  int  `json:"wbumps" desc:"Number of bumps along the width" validate:"gte=1,lte=32"`
	Thin        bool `json:"thin" desc:"True for thin brick, False for thick brick"`
}

type GearParams struct {
	Module        float64 `json:"module" desc:"Module (mm)" validate:"gt=0"`
	TeethNumber   int     `json:"teeth_number" desc:"Number of teeth" validate:"gte=3,lte=400"`
	Thickness     float64 `json:"thickness" desc:"Gear thickness (mm)" validate:"gt=0"`
	BoreDiameter  float64 `json:"bore_diameter" desc:"Center hole diameter (mm)" validate:"gte=0"`
	PressureAngle float64 `json:"pressure_angle" desc:"Pressure angle (degrees)" validate:"gte=0,lte=45"`
	Clearance     float64 `json:"clearance" desc:"Clearance (mm)" validate:"gte=0"`
	Backlash      float64 `json:"backlash" desc:"Backlash (mm)" validate:"gte=0"`
}

type CycloidalGear struct {
	R1        float64 `json:"r1" desc:"Radius of the larger circle" validate:"gt=0,gtfield=R2"`
	R2        float64 `json:"r2" desc:"Radius of the smaller circle" validate:"gt=0"`
	Thickness float64 `json:"thickness" desc:"Thickness of the gear" validate:"gt=0"`
}

type Bottle struct {
	Length         float64 `json:"length" desc:"Length of the bottle body" validate:"gt=0"`
	Width          float64 `json:"width" desc:"Width of the bottle body" validate:"gt=0"`
	Thickness      float64 `json:"thickness" desc:"Wall thickness of the bottle body" validate:"gt=0"`
	Height         float64 `json:"height" desc:"Height of the bottle" validate:"gt=0"`
	NeckRadius     float64 `json:"neck_radius" desc:"Radius of the bottle neck" validate:"gt=0"`
	NeckHeight     float64 `json:"neck_height" desc:"Height of the bottle neck" validate:"gt=0"`
	ShellThickness float64 `json:"shell_thickness" desc:"Thickness of the bottle shell" validate:"gt=0"`
}

type CircularBaseWithCutouts struct {
	BaseRadius        float64 `json:"base_radius" desc:"Radius of the circular base" validate:"gt=0"`
	SmallCircleRadius float64 `json:"small_circle_radius" desc:"Radius of the smaller circles" validate:"gt=0,ltfield=BaseRadius"`
	ExtrusionHeight   float64 `json:"extrusion_height" desc:"Height to extrude the small circles" validate:"gt=0"`
	CirclePositions   []Point `json:"circle_positions" desc:"Positions for the smaller circles around the base" validate:"min=1"`
}

type LoftedShape struct {
	BoxLength    float64 `json:"box_length" desc:"Length of the base box" validate:"gt=0"`
	BoxWidth     float64 `json:"box_width" desc:"Width of the base box" validate:"gt=0"`
	BoxHeight    float64 `json:"box_height" desc:"Height of the base box" validate:"gt=0"`
	CircleRadius float64 `json:"circle_radius" desc:"Radius of the top circle" validate:"gt=0"`
	LoftOffset   float64 `json:"loft_offset" desc:"Offset distance for the loft" validate:"gt=0"`
	RectLength   float64 `json:"rect_length" desc:"Length of the rectangle on top" validate:"gt=0"`
	RectWidth    float64 `json:"rect_width" desc:"Width of the rectangle on top" validate:"gt=0"`
}

type CylinderWithHoles struct {
	BaseCircleRadius  float64 `json:"base_circle_radius" desc:"Radius of the base circle" validate:"gt=0"`
	RectWidth         float64 `json:"rect_width" desc:"Width of the rectangle" validate:"gt=0"`
	RectHeight        float64 `json:"rect_height" desc:"Height of the rectangle" validate:"gt=0"`
	SmallCircleRadius float64 `json:"small_circle_radius" desc:"Radius of the small circle" validate:"gt=0"`
	ExtrusionHeight   float64 `json:"extrusion_height" desc:"Height to extrude the model" validate:"gt=0"`
}

type SplineExtrusion struct {
	ProfilePoints   []Point `json:"profile_points" desc:"List of points for the spline profile" validate:"min=1"`
	ExtrusionHeight float64 `json:"extrusion_height" desc:"Height of the extrusion" validate:"gt=0"`
	StartLine       *Point  `json:"start_line,omitempty" desc:"End of the first line from the origin, (3, 0) when omitted"`
	EndLine         *Point  `json:"end_line,omitempty" desc:"End of the second line, where the spline starts, (3, 1) when omitted"`
}

// Start is the end of the first straight edge of the profile.
func (s SplineExtrusion) Start() Point {
	if s.StartLine == nil {
		return Point{X: 3}
	}
	return *s.StartLine
}

// End is where the spline starts.
func (s SplineExtrusion) End() Point {
	if s.EndLine == nil {
		return Point{X: 3, Y: 1}
	}
	return *s.EndLine
}

type ComplexLShape struct {
	ExtrusionLength float64 `json:"extrusion_length" desc:"Length of the extrusion (mm)" validate:"gt=0"`
	RotationAngle   float64 `json:"rotation_angle" desc:"Rotation angle for the final shape (degrees)" validate:"gte=-360,lte=360"`
}

type Battery struct {
	BatteryLength   float64 `json:"battery_length" desc:"Length of the battery (mm)" validate:"gt=0"`
	CapHeight       float64 `json:"cap_height" desc:"Height of the battery cap (mm)" validate:"gt=0"`
	BatteryDiameter float64 `json:"battery_diameter" desc:"Diameter of the battery (mm)" validate:"gt=0"`
}

type RectangularBattery struct {
	BatteryLength   float64 `json:"battery_length" desc:"Length of the battery (mm)" validate:"gt=2"`
	BatteryWidth    float64 `json:"battery_width" desc:"Width of the battery (mm)" validate:"gt=0"`
	BatteryHeight   float64 `json:"battery_height" desc:"Height of the battery (mm)" validate:"gt=0"`
	TopCircleRadius float64 `json:"top_circle_radius" desc:"Radius of circles on the top face (mm)" validate:"gt=0.5"`
	HexRadius       float64 `json:"hex_radius" desc:"Radius of hexagons on the top face (mm)" validate:"gt=0.5"`
	ExtrusionHeight float64 `json:"extrusion_height" desc:"Height for extruding top features (mm)" validate:"gt=0"`
	FilletRadius    float64 `json:"fillet_radius" desc:"Radius for edge fillets (mm)" validate:"gt=0,ltfield=BatteryWidth"`
}

// Lid hole styles of a CustomBox.
const (
	HoleCounterbore = "counterbore"
	HoleCountersink = "countersink"
	HolePlain       = "plain"
)

type CustomBox struct {
	OuterWidth          float64 `json:"outer_width" desc:"Outer width of the box enclosure (mm)" validate:"gt=0"`
	OuterLength         float64 `json:"outer_length" desc:"Outer length of the box enclosure (mm)" validate:"gt=0"`
	OuterHeight         float64 `json:"outer_height" desc:"Outer height of the box enclosure (mm)" validate:"gt=0"`
	Thickness           float64 `json:"thickness" desc:"Thickness of the box walls (mm)" validate:"gt=0"`
	SideRadius          float64 `json:"side_radius" desc:"Radius for side curves of the box (mm)" validate:"gtfield=Thickness"`
	TopAndBottomRadius  float64 `json:"top_and_bottom_radius" desc:"Radius for top and bottom edges of the box (mm)" validate:"gt=0"`
	ScrewpostInset      float64 `json:"screwpost_inset" desc:"Distance from edges for screw posts (mm)" validate:"gt=0"`
	ScrewpostID         float64 `json:"screwpost_id" desc:"Inner diameter of the screw post holes (mm)" validate:"gt=0,ltfield=ScrewpostOD"`
	ScrewpostOD         float64 `json:"screwpost_od" desc:"Outer diameter of screw posts (mm)" validate:"gt=0"`
	BoreDiameter        float64 `json:"bore_diameter" desc:"Diameter of the counterbore hole (mm), 0 for none" validate:"gte=0"`
	BoreDepth           float64 `json:"bore_depth" desc:"Depth of the counterbore hole (mm), 0 for none" validate:"gte=0"`
	CountersinkDiameter float64 `json:"countersink_diameter" desc:"Outer diameter of countersink (mm), 0 for none" validate:"gte=0"`
	CountersinkAngle    float64 `json:"countersink_angle" desc:"Countersink angle (degrees), 0 for none" validate:"gte=0,lt=180"`
	FlipLid             bool    `json:"flip_lid" desc:"Whether to flip the lid upside down"`
	LipHeight           float64 `json:"lip_height" desc:"Height of lip on the underside of the lid (mm)" validate:"gte=0"`
}

// HoleStyle picks the lid screw holes: a counterbore when its diameter and
// depth are set, else a countersink when its diameter and angle are, else a
// plain hole.
func (b CustomBox) HoleStyle() string {
	switch {
	case b.BoreDiameter > 0 && b.BoreDepth > 0:
		return HoleCounterbore
	case b.CountersinkDiameter > 0 && b.CountersinkAngle > 0:
		return HoleCountersink
	default:
		return HolePlain
	}
}

func (Plate) Kind() string             { return "plate" }
func (Box) Kind() string               { return "box" }
func (Cylinder) Kind() string          { return "cylinder" }
func (Cone) Kind() string              { return "cone" }
func (Sphere) Kind() string            { return "sphere" }
func (PlateWithHole) Kind() string     { return "plate_with_hole" }
func (Torus) Kind() string             { return "torus" }
func (RectangularTube) Kind() string   { return "rectangular_tube" }
func (CylinderTube) Kind() string      { return "cylinder_tube" }
func (IBeam) Kind() string             { return "i_beam" }
func (PillowBlock) Kind() string       { return "pillow_block" }
func (BoxWithHexCutouts) Kind() string { return "box_with_hex_cutouts" }
func (LegoBrickParams) Kind() string   { return "lego_brick" }
func (GearParams) Kind() string        { return "gear" }
func (CycloidalGear) Kind() string     { return "cycloidal_gear" }
func (Bottle) Kind() string            { return "bottle" }

func (CircularBaseWithCutouts) Kind() string { return "circular_base_with_cutouts" }
func (LoftedShape) Kind() string             { return "lofted_shape" }
func (CylinderWithHoles) Kind() string       { return "cylinder_with_circle_and_rectangular_hole" }
func (SplineExtrusion) Kind() string         { return "spline_extrusion" }
func (ComplexLShape) Kind() string           { return "complex_extruded_l_shape" }
func (Battery) Kind() string                 { return "battery" }
func (RectangularBattery) Kind() string      { return "rectangular_battery" }
func (CustomBox) Kind() string               { return "custom_box" }
