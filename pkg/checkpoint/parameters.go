package checkpoint

import (
	"fmt"
	"strconv"
	"strings"
)

// Well known parameter keys
const (
	ParamGridX          = "grid.x"
	ParamGridY          = "grid.y"
	ParamGridZ          = "grid.z"
	ParamTrapPercentage = "trap.percentage"
	ParamTrapPotential  = "trap.potential"
)

// DefaultTrapPotential is used when a template does not set trap.potential
const DefaultTrapPotential = 0.1

// Parameters is an ordered set of simulation parameters. Keys keep the order
// in which they were first set so files round trip unchanged.
type Parameters struct {
	keys   []string
	values map[string]string
}

// NewParameters returns an empty parameter set
func NewParameters() *Parameters {
	return &Parameters{values: make(map[string]string)}
}

// DefaultParameters returns the parameters of a fresh simulation
func DefaultParameters() *Parameters {
	p := NewParameters()
	p.Set("simulation.type", "transistor")
	p.Set("iterations.real", 1000)
	p.Set("iterations.print", 10)
	p.Set(ParamGridX, 128)
	p.Set(ParamGridY, 256)
	p.Set(ParamGridZ, 1)
	p.Set("electron.percentage", 0.01)
	p.Set("hole.percentage", 0.0)
	p.Set("seed.charges", 0.0)
	p.Set("defect.percentage", 0.0)
	p.Set(ParamTrapPercentage, 0.0)
	p.Set(ParamTrapPotential, DefaultTrapPotential)
	p.Set("voltage.left", 0.0)
	p.Set("voltage.right", 0.0)
	p.Set("temperature.kelvin", 300.0)
	p.Set("random.seed", 0)
	return p
}

// Len returns the number of parameters
func (p *Parameters) Len() int {
	return len(p.keys)
}

// Keys returns the parameter names in order
func (p *Parameters) Keys() []string {
	return append([]string(nil), p.keys...)
}

// Has reports whether key is set
func (p *Parameters) Has(key string) bool {
	_, ok := p.values[key]
	return ok
}

// Get returns the raw value of key
func (p *Parameters) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Set stores value under key, formatting numbers and booleans the way the
// simulator reads them.
func (p *Parameters) Set(key string, value interface{}) {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		s = strconv.FormatBool(v)
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}

	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = s
}

// Delete removes key
func (p *Parameters) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Int parses key as an integer
func (p *Parameters) Int(key string) (int, error) {
	v, err := p.lookup(key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not an integer", key, v)
	}
	return n, nil
}

// Float parses key as a float
func (p *Parameters) Float(key string) (float64, error) {
	v, err := p.lookup(key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not a number", key, v)
	}
	return f, nil
}

// Bool parses key as a boolean
func (p *Parameters) Bool(key string) (bool, error) {
	v, err := p.lookup(key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(strings.ToLower(v))
	if err != nil {
		return false, fmt.Errorf("parameter %s: %q is not a boolean", key, v)
	}
	return b, nil
}

func (p *Parameters) lookup(key string) (string, error) {
	v, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("parameter %s is not set", key)
	}
	return v, nil
}

// Clone returns an independent copy
func (p *Parameters) Clone() *Parameters {
	c := &Parameters{
		keys:   append([]string(nil), p.keys...),
		values: make(map[string]string, len(p.values)),
	}
	for k, v := range p.values {
		c.values[k] = v
	}
	return c
}
