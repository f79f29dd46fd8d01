package checkpoint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// Grid is the simulation lattice. Sites are numbered x + X*(y + Y*z).
type Grid struct {
	X, Y, Z int
}

// Volume returns the number of sites
func (g Grid) Volume() int {
	return g.X * g.Y * g.Z
}

// Index returns the site id of x, y, z
func (g Grid) Index(x, y, z int) int {
	return x + g.X*(y+g.Y*z)
}

// Coords returns the x, y, z of site s
func (g Grid) Coords(s int) (x, y, z int) {
	return s % g.X, (s / g.X) % g.Y, s / (g.X * g.Y)
}

func (g Grid) String() string {
	return fmt.Sprintf("%dx%dx%d", g.X, g.Y, g.Z)
}

// CheckPoint is the complete input state of a simulation
type CheckPoint struct {
	Parameters     *Parameters
	Electrons      []int
	Holes          []int
	Defects        []int
	Traps          []int
	TrapPotentials []float64
	FluxState      []int64
	RandomState    []string
}

// New returns an empty checkpoint with default parameters
func New() *CheckPoint {
	return &CheckPoint{Parameters: DefaultParameters()}
}

// Clone returns a deep copy
func (c *CheckPoint) Clone() *CheckPoint {
	out := &CheckPoint{
		Electrons:      cloneSlice(c.Electrons),
		Holes:          cloneSlice(c.Holes),
		Defects:        cloneSlice(c.Defects),
		Traps:          cloneSlice(c.Traps),
		TrapPotentials: cloneSlice(c.TrapPotentials),
		FluxState:      cloneSlice(c.FluxState),
		RandomState:    cloneSlice(c.RandomState),
	}
	if c.Parameters != nil {
		out.Parameters = c.Parameters.Clone()
	} else {
		out.Parameters = NewParameters()
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Grid reads the lattice size from the parameters
func (c *CheckPoint) Grid() (Grid, error) {
	var g Grid
	var err error
	if g.X, err = c.Parameters.Int(ParamGridX); err != nil {
		return Grid{}, err
	}
	if g.Y, err = c.Parameters.Int(ParamGridY); err != nil {
		return Grid{}, err
	}
	if g.Z, err = c.Parameters.Int(ParamGridZ); err != nil {
		return Grid{}, err
	}
	if g.X <= 0 || g.Y <= 0 || g.Z <= 0 {
		return Grid{}, fmt.Errorf("grid %s must be positive in every dimension", g)
	}
	return g, nil
}

// SetGrid writes the lattice size into the parameters
func (c *CheckPoint) SetGrid(g Grid) {
	c.Parameters.Set(ParamGridX, g.X)
	c.Parameters.Set(ParamGridY, g.Y)
	c.Parameters.Set(ParamGridZ, g.Z)
}

// Validate checks that every site lies on the grid, that no list repeats a
// site and that trap potentials pair up with traps.
func (c *CheckPoint) Validate() error {
	if c.Parameters == nil {
		return errors.New("checkpoint has no parameters")
	}
	g, err := c.Grid()
	if err != nil {
		return err
	}

	var errs []error
	for _, list := range []struct {
		name  string
		sites []int
	}{
		{SectionElectrons, c.Electrons},
		{SectionHoles, c.Holes},
		{SectionDefects, c.Defects},
		{SectionTraps, c.Traps},
	} {
		if err := checkSites(list.name, list.sites, g.Volume()); err != nil {
			errs = append(errs, err)
		}
	}

	if n := len(c.TrapPotentials); n != 0 && n != len(c.Traps) {
		errs = append(errs, fmt.Errorf("%d trap potentials for %d traps", n, len(c.Traps)))
	}

	for _, tok := range c.RandomState {
		if !encodableToken(tok) {
			errs = append(errs, fmt.Errorf("%s: token %q cannot be written", SectionRandomState, tok))
		}
	}
	for _, k := range c.Parameters.Keys() {
		v, _ := c.Parameters.Get(k)
		if !encodableKey(k) {
			errs = append(errs, fmt.Errorf("parameter key %q cannot be written", k))
		}
		if strings.ContainsAny(v, "\r\n") || v != strings.TrimSpace(v) {
			errs = append(errs, fmt.Errorf("parameter %s: value %q cannot be written", k, v))
		}
	}

	return errors.Join(errs...)
}

// encodableToken reports whether tok survives a whitespace split and is not
// read back as a comment or section header
func encodableToken(tok string) bool {
	return tok != "" &&
		!strings.ContainsAny(tok, " \t\r\n\v\f") &&
		!strings.HasPrefix(tok, "#") &&
		!strings.HasPrefix(tok, "[")
}

func encodableKey(k string) bool {
	return k != "" &&
		k == strings.TrimSpace(k) &&
		!strings.ContainsAny(k, "=\r\n") &&
		!strings.HasPrefix(k, "#") &&
		!strings.HasPrefix(k, "[")
}

func checkSites(name string, sites []int, volume int) error {
	seen := make(map[int]struct{}, len(sites))
	for _, s := range sites {
		if s < 0 || s >= volume {
			return fmt.Errorf("%s: site %d outside grid of %d sites", name, s, volume)
		}
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%s: site %d listed twice", name, s)
		}
		seen[s] = struct{}{}
	}
	return nil
}

// TrapPercentage is the fraction of sites that are traps
func (c *CheckPoint) TrapPercentage() float64 {
	g, err := c.Grid()
	if err != nil || g.Volume() == 0 {
		return 0
	}
	return float64(len(c.Traps)) / float64(g.Volume())
}

// String summarises the checkpoint on one line
func (c *CheckPoint) String() string {
	grid := "?"
	if g, err := c.Grid(); err == nil {
		grid = g.String()
	}
	return fmt.Sprintf("CheckPoint(grid=%s, electrons=%d, holes=%d, defects=%d, traps=%d, trap.percentage=%s)",
		grid, len(c.Electrons), len(c.Holes), len(c.Defects), len(c.Traps),
		strconv.FormatFloat(c.TrapPercentage(), 'g', 6, 64))
}

// Field is one labelled row of a summary
type Field struct {
	Name  string
	Value string
}

// Summary returns labelled rows describing the checkpoint
func (c *CheckPoint) Summary() []Field {
	grid, volume := "?", "?"
	if g, err := c.Grid(); err == nil {
		grid, volume = g.String(), strconv.Itoa(g.Volume())
	}

	potentials := "-"
	if len(c.TrapPotentials) > 0 {
		lo, hi := floats.Min(c.TrapPotentials), floats.Max(c.TrapPotentials)
		if lo == hi {
			potentials = strconv.FormatFloat(lo, 'g', -1, 64)
		} else {
			potentials = fmt.Sprintf("%s .. %s",
				strconv.FormatFloat(lo, 'g', 6, 64), strconv.FormatFloat(hi, 'g', 6, 64))
		}
	}

	return []Field{
		{"grid", grid},
		{"sites", volume},
		{"electrons", strconv.Itoa(len(c.Electrons))},
		{"holes", strconv.Itoa(len(c.Holes))},
		{"defects", strconv.Itoa(len(c.Defects))},
		{"traps", strconv.Itoa(len(c.Traps))},
		{"trap.percentage", strconv.FormatFloat(c.TrapPercentage(), 'g', 6, 64)},
		{"trap potentials", potentials},
		{"flux counters", strconv.Itoa(len(c.FluxState))},
		{"random state", strconv.Itoa(len(c.RandomState))},
		{"parameters", strconv.Itoa(c.Parameters.Len())},
	}
}
