package designer

import (
	"reflect"
	"strconv"
	"strings"
)

// Schema derives the JSON schema of a parameter struct from its json, desc
// and validate tags.
func Schema(params any) map[string]any {
	t := reflect.TypeOf(params)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	properties := map[string]any{}
	required := []string{}

	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		prop := typeSchema(f.Type)
		if desc := f.Tag.Get("desc"); desc != "" {
			prop["description"] = desc
		}
		applyBounds(prop, f.Tag.Get("validate"))
		properties[name] = prop
		if !strings.Contains(opts, "omitempty") {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func typeSchema(t reflect.Type) map[string]any {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.Int, reflect.Int32, reflect.Int64:
		return map[string]any{"type": "integer"}
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem())}
	case reflect.Struct:
		return Schema(reflect.New(t).Interface())
	case reflect.Pointer:
		return typeSchema(t.Elem())
	default:
		return map[string]any{}
	}
}

// applyBounds maps the numeric validate rules onto schema keywords.
func applyBounds(prop map[string]any, rules string) {
	for _, rule := range strings.Split(rules, ",") {
		key, value, ok := strings.Cut(rule, "=")
		if !ok {
			continue
		}
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		isArray := prop["type"] == "array"
		switch {
		case key == "gt":
			prop["exclusiveMinimum"] = n
		case key == "gte" || (key == "min" && !isArray):
			prop["minimum"] = n
		case key == "lt":
			prop["exclusiveMaximum"] = n
		case key == "lte" || (key == "max" && !isArray):
			prop["maximum"] = n
		case key == "min":
			prop["minItems"] = int(n)
		case key == "max":
			prop["maxItems"] = int(n)
		}
	}
}
