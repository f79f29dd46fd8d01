// Package render draws checkpoint contents as images
package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"image2chk/pkg/checkpoint"
	"image2chk/pkg/config"
	"image2chk/pkg/storage"
)

// TrapColor is used for every trap marker
var TrapColor = color.RGBA{G: 160, A: 255}

// Options sizes the rendered image
type Options struct {
	Width       vg.Length
	Height      vg.Length
	PointRadius vg.Length
	Title       string
}

// DefaultOptions renders a 6x6 inch image with 1pt markers
func DefaultOptions() Options {
	return Options{
		Width:       6 * vg.Inch,
		Height:      6 * vg.Inch,
		PointRadius: vg.Points(1),
	}
}

// OptionsFromConfig converts the preview settings of cfg
func OptionsFromConfig(cfg config.PreviewConfig) Options {
	opts := DefaultOptions()
	if cfg.Width > 0 {
		opts.Width = vg.Length(cfg.Width) * vg.Inch
	}
	if cfg.Height > 0 {
		opts.Height = vg.Length(cfg.Height) * vg.Inch
	}
	if cfg.PointRadius > 0 {
		opts.PointRadius = vg.Points(cfg.PointRadius)
	}
	return opts
}

// TrapPoints returns the grid coordinates of the traps on the z=0 layer
func TrapPoints(chk *checkpoint.CheckPoint) (plotter.XYs, checkpoint.Grid, error) {
	g, err := chk.Grid()
	if err != nil {
		return nil, checkpoint.Grid{}, err
	}

	layer := g.X * g.Y
	pts := make(plotter.XYs, 0, len(chk.Traps))
	for _, s := range chk.Traps {
		if s < 0 || s >= layer {
			continue
		}
		x, y, _ := g.Coords(s)
		pts = append(pts, plotter.XY{X: float64(x), Y: float64(y)})
	}
	return pts, g, nil
}

// Traps builds a scatter plot of the z=0 traps of chk, framed by the grid
func Traps(chk *checkpoint.CheckPoint, opts Options) (*plot.Plot, error) {
	pts, g, err := TrapPoints(chk)
	if err != nil {
		return nil, err
	}

	p := plot.New()
	p.BackgroundColor = color.White
	p.Title.Text = opts.Title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	if len(pts) > 0 {
		s, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("failed to build scatter: %w", err)
		}
		s.GlyphStyle.Color = TrapColor
		s.GlyphStyle.Radius = opts.PointRadius
		s.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(s)
	}

	// frame the whole grid, not just the occupied part
	p.X.Min, p.X.Max = 0, float64(g.X-1)
	p.Y.Min, p.Y.Max = 0, float64(g.Y-1)

	return p, nil
}

// WriteTraps encodes the trap plot in format (png, svg, pdf, ...)
func WriteTraps(w io.Writer, chk *checkpoint.CheckPoint, format string, opts Options) error {
	p, err := Traps(chk, opts)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, format)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveTraps renders the trap plot to path. The format follows the extension.
func SaveTraps(chk *checkpoint.CheckPoint, path string, opts Options) error {
	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if format == "" {
		return errors.New("preview path needs an image extension")
	}
	return storage.AtomicWrite(path, func(w io.Writer) error {
		return WriteTraps(w, chk, format, opts)
	})
}
