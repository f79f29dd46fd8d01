package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	errs "image2chk/pkg/errors"
	"image2chk/pkg/logger"
	"image2chk/pkg/storage"
)

// Section headers in file order
const (
	SectionElectrons      = "Electrons"
	SectionHoles          = "Holes"
	SectionDefects        = "Defects"
	SectionTraps          = "Traps"
	SectionTrapPotentials = "TrapPotentials"
	SectionFluxState      = "FluxState"
	SectionRandomState    = "RandomState"
	SectionParameters     = "Parameters"
)

var sectionOrder = []string{
	SectionElectrons,
	SectionHoles,
	SectionDefects,
	SectionTraps,
	SectionTrapPotentials,
	SectionFluxState,
	SectionRandomState,
	SectionParameters,
}

// ErrMalformed is wrapped by every decoding error
var ErrMalformed = errors.New("malformed checkpoint")

// Encode writes the checkpoint in its text form
func (c *CheckPoint) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)

	writeInts(bw, SectionElectrons, c.Electrons)
	writeInts(bw, SectionHoles, c.Holes)
	writeInts(bw, SectionDefects, c.Defects)
	writeInts(bw, SectionTraps, c.Traps)

	fmt.Fprintf(bw, "[%s]\n%d\n", SectionTrapPotentials, len(c.TrapPotentials))
	for _, v := range c.TrapPotentials {
		bw.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		bw.WriteByte('\n')
	}

	fmt.Fprintf(bw, "[%s]\n%d\n", SectionFluxState, len(c.FluxState))
	for _, v := range c.FluxState {
		bw.WriteString(strconv.FormatInt(v, 10))
		bw.WriteByte('\n')
	}

	fmt.Fprintf(bw, "[%s]\n%d\n", SectionRandomState, len(c.RandomState))
	for _, v := range c.RandomState {
		bw.WriteString(v)
		bw.WriteByte('\n')
	}

	fmt.Fprintf(bw, "[%s]\n", SectionParameters)
	if c.Parameters != nil {
		for _, k := range c.Parameters.keys {
			fmt.Fprintf(bw, "%s = %s\n", k, c.Parameters.values[k])
		}
	}

	return bw.Flush()
}

func writeInts(bw *bufio.Writer, section string, values []int) {
	fmt.Fprintf(bw, "[%s]\n%d\n", section, len(values))
	for _, v := range values {
		bw.WriteString(strconv.Itoa(v))
		bw.WriteByte('\n')
	}
}

// decoder accumulates the tokens of the current section
type decoder struct {
	chk      *CheckPoint
	seen     map[string]bool
	section  string
	start    int
	count    int
	haveHead bool
	tokens   []string
}

// Decode parses a checkpoint. Sections may appear in any order; list
// sections hold a count followed by that many whitespace separated values.
func Decode(r io.Reader) (*CheckPoint, error) {
	d := &decoder{
		chk:  &CheckPoint{Parameters: NewParameters()},
		seen: make(map[string]bool),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		// only whole lines are comments, values may contain '#'
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") {
			if err := d.finish(); err != nil {
				return nil, err
			}
			if err := d.begin(strings.TrimSpace(text[1:len(text)-1]), line); err != nil {
				return nil, err
			}
			continue
		}

		if err := d.add(text, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	if err := d.finish(); err != nil {
		return nil, err
	}

	return d.chk, nil
}

func malformed(line int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformed, line, fmt.Sprintf(format, args...))
}

func (d *decoder) begin(name string, line int) error {
	known := false
	for _, s := range sectionOrder {
		if s == name {
			known = true
			break
		}
	}
	if !known {
		return malformed(line, "unknown section [%s]", name)
	}
	if d.seen[name] {
		return malformed(line, "section [%s] repeated", name)
	}
	d.seen[name] = true
	d.section = name
	d.start = line
	d.count = 0
	d.haveHead = false
	d.tokens = d.tokens[:0]
	return nil
}

func (d *decoder) add(text string, line int) error {
	switch d.section {
	case "":
		return malformed(line, "data before the first section")
	case SectionParameters:
		key, value, ok := strings.Cut(text, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return malformed(line, "expected key = value, got %q", text)
		}
		d.chk.Parameters.Set(key, strings.TrimSpace(value))
		return nil
	}

	fields := strings.Fields(text)
	if !d.haveHead {
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 0 {
			return malformed(line, "section [%s] must start with a count, got %q", d.section, fields[0])
		}
		d.count = n
		d.haveHead = true
		fields = fields[1:]
	}
	if len(d.tokens)+len(fields) > d.count {
		return malformed(line, "section [%s] holds more than %d values", d.section, d.count)
	}
	d.tokens = append(d.tokens, fields...)
	return nil
}

func (d *decoder) finish() error {
	if d.section == "" || d.section == SectionParameters {
		return nil
	}
	if len(d.tokens) != d.count {
		return malformed(d.start, "section [%s] declares %d values but has %d", d.section, d.count, len(d.tokens))
	}

	var err error
	switch d.section {
	case SectionElectrons:
		d.chk.Electrons, err = parseInts(d.tokens)
	case SectionHoles:
		d.chk.Holes, err = parseInts(d.tokens)
	case SectionDefects:
		d.chk.Defects, err = parseInts(d.tokens)
	case SectionTraps:
		d.chk.Traps, err = parseInts(d.tokens)
	case SectionTrapPotentials:
		d.chk.TrapPotentials = make([]float64, len(d.tokens))
		for i, tok := range d.tokens {
			if d.chk.TrapPotentials[i], err = strconv.ParseFloat(tok, 64); err != nil {
				break
			}
		}
	case SectionFluxState:
		d.chk.FluxState = make([]int64, len(d.tokens))
		for i, tok := range d.tokens {
			if d.chk.FluxState[i], err = strconv.ParseInt(tok, 10, 64); err != nil {
				break
			}
		}
	case SectionRandomState:
		d.chk.RandomState = append([]string(nil), d.tokens...)
	}
	if err != nil {
		return malformed(d.start, "section [%s]: %v", d.section, err)
	}
	return nil
}

func parseInts(tokens []string) ([]int, error) {
	out := make([]int, len(tokens))
	for i, tok := range tokens {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Load reads and validates the checkpoint at path. Gzip files are detected
// by content.
func Load(path string) (*CheckPoint, error) {
	rc, err := storage.OpenReader(path)
	if err != nil {
		return nil, errs.IO("open", path, err)
	}
	defer rc.Close()

	chk, err := Decode(rc)
	if err != nil {
		return nil, errs.Format("parse", path, err)
	}
	if err := chk.Validate(); err != nil {
		return nil, errs.Format("validate", path, err)
	}

	logger.GetLogger().DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"path":       path,
		"traps":      len(chk.Traps),
		"electrons":  len(chk.Electrons),
		"holes":      len(chk.Holes),
		"parameters": chk.Parameters.Len(),
	})

	return chk, nil
}

// Save validates the checkpoint and writes it to path atomically. A ".gz"
// suffix selects gzip compression.
func (c *CheckPoint) Save(path string) error {
	if err := c.Validate(); err != nil {
		return errs.Format("validate", path, err)
	}

	if err := storage.AtomicWrite(path, c.Encode); err != nil {
		return errs.IO("save", path, err)
	}

	logger.GetLogger().DebugWithFields("Checkpoint saved", map[string]interface{}{
		"path":       path,
		"traps":      len(c.Traps),
		"compressed": storage.IsCompressed(path),
	})

	return nil
}
