package designer

import (
	"cad-lab/domain"
	"cad-lab/errors"
	"cad-lab/executor"
	"context"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type runnerStub struct {
	result  executor.Result
	scripts map[string]string
}

func (r *runnerStub) RunScript(_ context.Context, name, code string) executor.Result {
	if r.scripts == nil {
		r.scripts = map[string]string{}
	}
	r.scripts[name] = code
	return r.result
}

func (r *runnerStub) WorkDir() string {
	return "NewCADs"
}

func TestRegistry_Definitions(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(&runnerStub{}, slog.Default())

	defs := reg.Definitions()
	req.Len(defs, 24)
	req.True(reg.Has("create_plate"))
	req.True(reg.Has("create_lego_brick"))
	req.True(reg.Has("create_custom_box"))
	req.True(reg.Has("create_cylinder_with_circle_and_rectangular_hole"))
	req.False(reg.Has("create_spaceship"))

	var gear map[string]any
	for _, d := range defs {
		if d.Name == "create_gear" {
			gear = d.InputSchema
			req.Equal("Create a CAD gear model.", d.Description)
		}
	}
	req.NotNil(gear)
	props := gear["properties"].(map[string]any)
	teeth := props["teeth_number"].(map[string]any)
	req.Equal("integer", teeth["type"])
	req.Equal(float64(3), teeth["minimum"])
	req.Equal("Number of teeth", teeth["description"])
	module := props["module"].(map[string]any)
	req.Equal(float64(0), module["exclusiveMinimum"])
	req.Contains(gear["required"], "backlash")
}

func TestSchema(t *testing.T) {
	req := require.New(t)
	type params struct {
		Points []struct {
			X float64 `json:"x"`
		} `json:"points" desc:"Where to cut" validate:"min=1"`
		Offset float64 `json:"offset,omitempty"`
		Thin   bool    `json:"thin"`
	}

	schema := Schema(params{})

	props := schema["properties"].(map[string]any)
	points := props["points"].(map[string]any)
	req.Equal("array", points["type"])
	req.Equal(1, points["minItems"])
	items := points["items"].(map[string]any)
	req.Equal("object", items["type"])
	req.Equal("boolean", props["thin"].(map[string]any)["type"])
	req.Equal([]string{"points", "thin"}, schema["required"])
}

func TestRegistry_Call(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	t.Run("should build the part and report its file", func(t *testing.T) {
		req := require.New(t)
		runner := &runnerStub{}
		reg := NewRegistry(runner, log)

		out, err := reg.Call(context.Background(), "create_plate", map[string]any{"length": 100.0, "width": 50, "thickness": 2})

		req.NoError(err)
		req.Equal("Plate model created and saved as NewCADs/plate.stl", out)
		req.Contains(runner.scripts["plate.py"], "box(100, 50, 2)")
	})

	t.Run("should reject invalid arguments before running anything", func(t *testing.T) {
		req := require.New(t)
		runner := &runnerStub{}
		reg := NewRegistry(runner, log)

		_, err := reg.Call(context.Background(), "create_torus", map[string]any{"major_radius": 2, "minor_radius": 5})

		req.Error(err)
		req.Contains(err.Error(), "MajorRadius must satisfy gtfield=MinorRadius")
		req.Empty(runner.scripts)
	})

	t.Run("should export the battery under its historical name", func(t *testing.T) {
		req := require.New(t)
		runner := &runnerStub{}
		reg := NewRegistry(runner, log)

		out, err := reg.Call(context.Background(), "create_battery", map[string]any{"battery_length": 65, "cap_height": 1.5, "battery_diameter": 18})

		req.NoError(err)
		req.Equal("Battery model created and saved as NewCADs/battery_model.stl", out)
	})

	t.Run("should reject a box whose side radius leaves no inner fillet", func(t *testing.T) {
		req := require.New(t)
		runner := &runnerStub{}
		reg := NewRegistry(runner, log)

		_, err := reg.Call(context.Background(), "create_custom_box", map[string]any{
			"outer_width": 100, "outer_length": 150, "outer_height": 50, "thickness": 3,
			"side_radius": 2, "top_and_bottom_radius": 2, "screwpost_inset": 12,
			"screwpost_id": 4, "screwpost_od": 10, "bore_diameter": 8, "bore_depth": 1,
			"countersink_diameter": 0, "countersink_angle": 0, "flip_lid": false, "lip_height": 1,
		})

		req.Error(err)
		req.Contains(err.Error(), "SideRadius must satisfy gtfield=Thickness")
		req.Empty(runner.scripts)
	})

	t.Run("should reject arguments of the wrong type", func(t *testing.T) {
		req := require.New(t)
		reg := NewRegistry(&runnerStub{}, log)
		_, err := reg.Call(context.Background(), "create_sphere", map[string]any{"radius": "big"})
		req.Error(err)
	})

	t.Run("should report an unknown tool", func(t *testing.T) {
		req := require.New(t)
		reg := NewRegistry(&runnerStub{}, log)
		_, err := reg.Call(context.Background(), "create_spaceship", nil)
		req.ErrorIs(err, errors.ErrUnknownTool)
	})

	t.Run("should surface a failing script", func(t *testing.T) {
		req := require.New(t)
		runner := &runnerStub{result: executor.Result{ExitCode: 1, Output: "ModuleNotFoundError: cadquery"}}
		reg := NewRegistry(runner, log)

		_, err := reg.Call(context.Background(), "create_cylinder", map[string]any{"radius": 5, "height": 10})

		req.Error(err)
		req.Contains(err.Error(), "ModuleNotFoundError")
	})
}

func TestRegistry_Execute(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry(&runnerStub{}, slog.Default())

	ok := reg.Execute(context.Background(), domain.ToolCall{ID: "c1", Name: "create_sphere", Arguments: map[string]any{"radius": 3}})
	req.False(ok.IsError)
	req.Equal("c1", ok.CallID)
	req.Contains(ok.Content, "sphere.stl")

	bad := reg.Execute(context.Background(), domain.ToolCall{ID: "c2", Name: "create_sphere", Arguments: map[string]any{"radius": -3}})
	req.True(bad.IsError)
	req.Contains(bad.Content, "Radius")
}
