package pokepay

import (
	"strings"
)

// FieldSpec maps one result field to a dotted path in the decoded reply
type FieldSpec struct {
	Name     string
	Path     string
	Optional bool
}

// Shape is a declarative description of one reply type. Projection copies
// each path out of the decoded reply and fails if a required path is absent.
// A present null counts as present.
type Shape struct {
	Name   string
	Fields []FieldSpec
}

// NewShape builds a shape whose field names equal their top-level paths
func NewShape(name string, fields ...string) *Shape {
	s := &Shape{Name: name}
	for _, f := range fields {
		s.Fields = append(s.Fields, FieldSpec{Name: f, Path: f})
	}
	return s
}

// Extend returns a copy of s named name with extra field specs appended
func (s *Shape) Extend(name string, specs ...FieldSpec) *Shape {
	out := &Shape{Name: name, Fields: make([]FieldSpec, 0, len(s.Fields)+len(specs))}
	out.Fields = append(out.Fields, s.Fields...)
	out.Fields = append(out.Fields, specs...)
	return out
}

// Project extracts the shape's fields from data. A nil shape passes every
// top-level field through.
func (s *Shape) Project(data map[string]any) (map[string]any, error) {
	if s == nil {
		out := make(map[string]any, len(data))
		for k, v := range data {
			out[k] = v
		}
		return out, nil
	}

	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := lookupPath(data, f.Path)
		if !ok {
			if f.Optional {
				continue
			}
			return nil, &ShapeError{Shape: s.Name, Field: f.Name, Path: f.Path}
		}
		out[f.Name] = v
	}
	return out, nil
}

func lookupPath(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
