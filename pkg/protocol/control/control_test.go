// ABOUTME: Tests for control dispatch
// ABOUTME: Covers param vs command resolution and argument coercion
package control

import (
	"errors"
	"testing"
)

var table = Table{
	Params:   []string{"gain", "engineParams"},
	Commands: []string{"reset", "touch"},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		msg  Args
		want Resolution
	}{
		{"single value param", Args{"gain", 0.5}, Param{Name: "gain", Value: 0.5}},
		{"multi value param", Args{"engineParams", "periodAbs", 0.1}, Param{Name: "engineParams", Value: []interface{}{"periodAbs", 0.1}}},
		{"command without args", Args{"reset"}, Command{Name: "reset", Args: Args{}}},
		{"command with args", Args{"touch", 3.0}, Command{Name: "touch", Args: Args{3.0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(table, tt.msg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch want := tt.want.(type) {
			case Param:
				p, ok := got.(Param)
				if !ok {
					t.Fatalf("expected Param, got %T", got)
				}
				if p.Name != want.Name {
					t.Errorf("expected name %s, got %s", want.Name, p.Name)
				}
				if vs, ok := want.Value.([]interface{}); ok {
					pv, ok := p.Value.([]interface{})
					if !ok || len(pv) != len(vs) {
						t.Fatalf("expected %v, got %v", vs, p.Value)
					}
				} else if p.Value != want.Value {
					t.Errorf("expected %v, got %v", want.Value, p.Value)
				}
			case Command:
				c, ok := got.(Command)
				if !ok {
					t.Fatalf("expected Command, got %T", got)
				}
				if c.Name != want.Name || len(c.Args) != len(want.Args) {
					t.Errorf("expected %v, got %v", want, c)
				}
			}
		})
	}
}

func TestResolveUnknown(t *testing.T) {
	for _, msg := range []Args{{}, {"bogus", 1.0}, {3.0}} {
		if _, err := Resolve(table, msg); !errors.Is(err, ErrUnknownName) {
			t.Errorf("%v: expected ErrUnknownName, got %v", msg, err)
		}
	}
}

func TestArgs(t *testing.T) {
	args := Args{"1.5", 2.0, true, "yes?", "false"}

	if f, err := args.Float(0); err != nil || f != 1.5 {
		t.Errorf("Float(0) = %v, %v", f, err)
	}
	if i, err := args.Int(1); err != nil || i != 2 {
		t.Errorf("Int(1) = %v, %v", i, err)
	}
	if b, err := args.Bool(2); err != nil || !b {
		t.Errorf("Bool(2) = %v, %v", b, err)
	}
	if b, err := args.Bool(4); err != nil || b {
		t.Errorf("Bool(4) = %v, %v", b, err)
	}
	if _, err := args.Float(3); err == nil {
		t.Error("expected error for non-numeric string")
	}
	if _, err := args.Float(9); err == nil {
		t.Error("expected error for missing arg")
	}

	fs, err := Args{0.0, 1.0, "2"}.Floats(1)
	if err != nil || len(fs) != 2 || fs[1] != 2 {
		t.Errorf("Floats(1) = %v, %v", fs, err)
	}
}
