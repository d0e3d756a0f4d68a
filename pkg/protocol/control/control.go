// ABOUTME: Static control dispatch for module messages
// ABOUTME: Resolves [name, args...] into a Param or a Command through a per-module table
package control

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnknownName is returned when a message names neither a param nor a command
var ErrUnknownName = errors.New("unknown control name")

// Args are the JSON values following the control name
type Args []interface{}

// Resolution is either a Param or a Command
type Resolution interface {
	resolution()
}

// Param assigns a stored module parameter
type Param struct {
	Name string
	// Value is the single argument, or all remaining args when there are several
	Value interface{}
}

// Command invokes a module operation
type Command struct {
	Name string
	Args Args
}

func (Param) resolution()   {}
func (Command) resolution() {}

// Table is a module's static dispatch table
type Table struct {
	Params   []string
	Commands []string
}

// Has reports whether name is a param or command of the table
func (t Table) Has(name string) bool {
	return t.isParam(name) || t.isCommand(name)
}

func (t Table) isParam(name string) bool {
	for _, p := range t.Params {
		if p == name {
			return true
		}
	}
	return false
}

func (t Table) isCommand(name string) bool {
	for _, c := range t.Commands {
		if c == name {
			return true
		}
	}
	return false
}

// Resolve maps a control message onto the table. Params win over commands
// of the same name.
func Resolve(t Table, msg Args) (Resolution, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrUnknownName)
	}
	name, ok := msg[0].(string)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownName, msg[0])
	}
	rest := msg[1:]

	switch {
	case t.isParam(name):
		var value interface{} = []interface{}(rest)
		if len(rest) == 1 {
			value = rest[0]
		}
		return Param{Name: name, Value: value}, nil
	case t.isCommand(name):
		return Command{Name: name, Args: rest}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
}

// Float reads arg i as a number. Numeric strings and bools are accepted
// since OSC bridges often send everything as text.
func (a Args) Float(i int) (float64, error) {
	if i < 0 || i >= len(a) {
		return 0, fmt.Errorf("missing argument %d", i)
	}
	return ToFloat(a[i])
}

// Int reads arg i as an integer
func (a Args) Int(i int) (int, error) {
	f, err := a.Float(i)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// Bool reads arg i as a flag; non-zero numbers are true
func (a Args) Bool(i int) (bool, error) {
	if i < 0 || i >= len(a) {
		return false, fmt.Errorf("missing argument %d", i)
	}
	return ToBool(a[i])
}

// String reads arg i as text
func (a Args) String(i int) (string, error) {
	if i < 0 || i >= len(a) {
		return "", fmt.Errorf("missing argument %d", i)
	}
	switch v := a[i].(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	}
	return fmt.Sprint(a[i]), nil
}

// Floats reads every arg from i on as numbers
func (a Args) Floats(i int) ([]float64, error) {
	if i > len(a) {
		return nil, fmt.Errorf("missing argument %d", i)
	}
	out := make([]float64, 0, len(a)-i)
	for j := i; j < len(a); j++ {
		f, err := ToFloat(a[j])
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", j, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// ToFloat converts a decoded JSON value to float64
func ToFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// ToBool converts a decoded JSON value to a flag
func ToBool(v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		if b, err := strconv.ParseBool(x); err == nil {
			return b, nil
		}
	}
	f, err := ToFloat(v)
	if err != nil {
		return false, err
	}
	return f != 0, nil
}
