package checkpoint

import (
	"errors"
	"sort"

	errs "image2chk/pkg/errors"
	"image2chk/pkg/imaging"
	"image2chk/pkg/logger"
)

// Options controls how image pixels become traps
type Options struct {
	// Threshold separates trap pixels from transport pixels
	Threshold imaging.Threshold
	// Invert makes bright pixels traps instead of dark ones
	Invert bool
	// ScalePotential multiplies trap.potential by each pixel's intensity
	ScalePotential bool
}

// DefaultOptions treats pixels darker than mid grey as traps
func DefaultOptions() Options {
	return Options{
		Threshold: imaging.Threshold{Mode: imaging.ThresholdFixed, Value: 0.5},
	}
}

// FromImage decodes the image at path and builds a checkpoint from it,
// seeded from template when template is not nil.
func FromImage(path string, template *CheckPoint, opts Options) (*CheckPoint, error) {
	raster, err := imaging.Load(path)
	if err != nil {
		return nil, errs.Image("load", path, err)
	}
	return FromRaster(raster, template, opts)
}

type trapSite struct {
	site      int
	potential float64
}

// FromRaster builds a checkpoint whose grid matches the raster and whose
// traps are the raster's trap pixels, stamped through every z layer. The
// template is never modified.
func FromRaster(r *imaging.Raster, template *CheckPoint, opts Options) (*CheckPoint, error) {
	if r.Width == 0 || r.Height == 0 {
		return nil, errs.Image("convert", "", errors.New("image has no pixels"))
	}

	var chk *CheckPoint
	var previous Grid
	hasPrevious := false
	if template != nil {
		chk = template.Clone()
		if g, err := template.Grid(); err == nil {
			previous, hasPrevious = g, true
		}
	} else {
		chk = New()
	}

	depth := 1
	if z, err := chk.Parameters.Int(ParamGridZ); err == nil && z > 0 {
		depth = z
	}
	grid := Grid{X: r.Width, Y: r.Height, Z: depth}

	potential := DefaultTrapPotential
	if chk.Parameters.Has(ParamTrapPotential) {
		v, err := chk.Parameters.Float(ParamTrapPotential)
		if err != nil {
			return nil, errs.Template("convert", "", err)
		}
		potential = v
	} else {
		chk.Parameters.Set(ParamTrapPotential, potential)
	}

	threshold, err := opts.Threshold.Resolve(r)
	if err != nil {
		return nil, errs.Image("threshold", "", err)
	}

	mask := r.Mask(threshold, opts.Invert)
	traps := make([]trapSite, 0)
	for py := 0; py < r.Height; py++ {
		for px := 0; px < r.Width; px++ {
			if !mask[py*r.Width+px] {
				continue
			}
			v := potential
			if opts.ScalePotential {
				v = potential * r.Intensity(px, py, opts.Invert)
			}
			// image rows run top down, grid y runs bottom up
			x, y := px, r.Height-1-py
			for z := 0; z < depth; z++ {
				traps = append(traps, trapSite{site: grid.Index(x, y, z), potential: v})
			}
		}
	}
	sort.Slice(traps, func(i, j int) bool { return traps[i].site < traps[j].site })

	chk.Traps = make([]int, len(traps))
	chk.TrapPotentials = make([]float64, len(traps))
	for i, t := range traps {
		chk.Traps[i] = t.site
		chk.TrapPotentials[i] = t.potential
	}
	chk.SetGrid(grid)

	log := logger.GetLogger()
	if hasPrevious && previous != grid {
		if n := len(chk.Electrons) + len(chk.Holes) + len(chk.Defects); n > 0 {
			log.WarnWithFields("Grid changed, dropping template carriers and defects", map[string]interface{}{
				"template_grid": previous.String(),
				"image_grid":    grid.String(),
				"dropped":       n,
			})
		}
		chk.Electrons, chk.Holes, chk.Defects = nil, nil, nil
	} else {
		chk.Defects = withoutSites(chk.Defects, chk.Traps)
	}

	chk.Parameters.Set(ParamTrapPercentage, chk.TrapPercentage())

	log.DebugWithFields("Traps extracted from image", map[string]interface{}{
		"grid":      grid.String(),
		"threshold": threshold,
		"traps":     len(chk.Traps),
		"invert":    opts.Invert,
	})

	if err := chk.Validate(); err != nil {
		return nil, errs.Format("validate", "", err)
	}
	return chk, nil
}

// withoutSites drops every entry of sites that appears in sorted
func withoutSites(sites, sorted []int) []int {
	if len(sites) == 0 {
		return sites
	}
	out := sites[:0:0]
	for _, s := range sites {
		i := sort.SearchInts(sorted, s)
		if i < len(sorted) && sorted[i] == s {
			continue
		}
		out = append(out, s)
	}
	return out
}
