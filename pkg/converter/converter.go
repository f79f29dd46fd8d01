package converter

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"image2chk/internal/render"
	"image2chk/pkg/checkpoint"
	"image2chk/pkg/config"
	errs "image2chk/pkg/errors"
	"image2chk/pkg/imaging"
	"image2chk/pkg/logger"
	"image2chk/pkg/storage"
)

// Default inputs used when nothing else is configured
const (
	DefaultImage     = "image.png"
	DefaultStub      = "sim"
	DefaultTemplate  = "template.inp"
	DefaultExtension = "inp"
)

// Request describes one conversion
type Request struct {
	Image     string
	Stub      string
	Template  string
	OutputDir string
	Extension string
	Compress  bool

	Preview        bool
	PreviewName    string
	PreviewOptions render.Options

	Options checkpoint.Options
}

// DefaultRequest converts image.png, seeded by template.inp when present, into sim.inp
func DefaultRequest() Request {
	return Request{
		Image:          DefaultImage,
		Stub:           DefaultStub,
		Template:       DefaultTemplate,
		Extension:      DefaultExtension,
		PreviewName:    "traps",
		PreviewOptions: render.DefaultOptions(),
		Options:        checkpoint.DefaultOptions(),
	}
}

// RequestFromConfig builds a Request from resolved configuration
func RequestFromConfig(cfg *config.Config) (Request, error) {
	threshold, err := imaging.ParseThreshold(cfg.Convert.Threshold)
	if err != nil {
		return Request{}, errs.New(errs.ErrorTypeConfig, "threshold", "", err)
	}

	req := DefaultRequest()
	req.Image = cfg.Convert.Image
	req.Stub = cfg.Convert.Stub
	req.Template = cfg.Convert.Template
	req.OutputDir = cfg.Output.Directory
	req.Compress = cfg.Output.Compress
	req.Preview = cfg.Output.Preview
	req.PreviewOptions = render.OptionsFromConfig(cfg.Preview)
	req.Options = checkpoint.Options{
		Threshold:      threshold,
		Invert:         cfg.Convert.Invert,
		ScalePotential: cfg.Convert.ScalePotential,
	}
	if cfg.Output.Extension != "" {
		req.Extension = cfg.Output.Extension
	}
	if cfg.Preview.Name != "" {
		req.PreviewName = cfg.Preview.Name
	}
	return req, nil
}

// OutputPath is where the checkpoint is written: <stub>.<ext> under the
// output directory, with a gzip suffix when compressing. The image name
// plays no part.
func (r Request) OutputPath() string {
	ext := r.Extension
	if ext == "" {
		ext = DefaultExtension
	}
	name := storage.FormatOutput(r.Stub, "", ext)
	if r.Compress {
		name += storage.GzipExt
	}
	return storage.InDirectory(r.OutputDir, name)
}

// PreviewPath is where the trap preview is written: <stub>-<name>.png
func (r Request) PreviewPath() string {
	return storage.InDirectory(r.OutputDir, storage.FormatOutput(r.Stub, r.PreviewName, "png"))
}

// Result describes a finished conversion
type Result struct {
	CheckPoint   *checkpoint.CheckPoint
	Path         string
	TemplateUsed bool
	PreviewPath  string
	Duration     time.Duration
	// Dropped counts template electrons, holes and defects left out of the result
	Dropped int
}

// Converter turns images into checkpoints
type Converter struct {
	images    ImageSource
	templates TemplateSource
	sink      CheckpointSink
	previews  PreviewRenderer
	logger    logger.Logger
}

// Option customises a Converter
type Option func(*Converter)

// WithImageSource replaces the image decoder
func WithImageSource(s ImageSource) Option {
	return func(c *Converter) { c.images = s }
}

// WithTemplateSource replaces the template loader
func WithTemplateSource(s TemplateSource) Option {
	return func(c *Converter) { c.templates = s }
}

// WithSink replaces the checkpoint writer
func WithSink(s CheckpointSink) Option {
	return func(c *Converter) { c.sink = s }
}

// WithPreviewRenderer replaces the preview writer
func WithPreviewRenderer(p PreviewRenderer) Option {
	return func(c *Converter) { c.previews = p }
}

// WithLogger sets the logger used for progress messages
func WithLogger(l logger.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// New creates a Converter backed by the filesystem
func New(opts ...Option) *Converter {
	c := &Converter{
		images:    FileImages{},
		templates: FileTemplates{},
		sink:      FileSink{},
		previews:  FilePreviews{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.GetLogger()
	}
	return c
}

// Run converts with a filesystem backed Converter
func Run(ctx context.Context, req Request) (*Result, error) {
	return New().Run(ctx, req)
}

// Run loads the template (when it exists) and decodes the image
// concurrently, builds the checkpoint and saves it.
func (c *Converter) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	result := &Result{Path: req.OutputPath()}

	var (
		raster   *imaging.Raster
		template *checkpoint.CheckPoint
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if req.Template == "" || !c.templates.Exists(req.Template) {
			return nil
		}
		c.logger.DebugWithFields("Loading template", map[string]interface{}{"template": req.Template})
		t, err := c.templates.Load(req.Template)
		if err != nil {
			return errs.Template("load", req.Template, err)
		}
		template = t
		return gctx.Err()
	})

	g.Go(func() error {
		c.logger.DebugWithFields("Decoding image", map[string]interface{}{"image": req.Image})
		r, err := c.images.Load(req.Image)
		if err != nil {
			return errs.Image("load", req.Image, err)
		}
		raster = r
		return gctx.Err()
	})

	if err := g.Wait(); err != nil {
		c.logger.WithError(err).Debug("Loading inputs failed")
		return nil, err
	}

	result.TemplateUsed = template != nil
	if result.TemplateUsed {
		c.logger.InfoWithFields("Using template", map[string]interface{}{"template": req.Template})
	} else {
		c.logger.InfoWithFields("No template, building from image alone", map[string]interface{}{"template": req.Template})
	}

	chk, err := checkpoint.FromRaster(raster, template, req.Options)
	if err != nil {
		return nil, err
	}
	result.CheckPoint = chk
	if template != nil {
		result.Dropped = siteCount(template) - siteCount(chk)
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("conversion cancelled: %w", err)
	}

	if err := c.sink.Save(chk, result.Path); err != nil {
		return nil, err
	}

	if req.Preview {
		path := req.PreviewPath()
		if err := c.previews.Render(chk, path, req.PreviewOptions); err != nil {
			return nil, errs.IO("preview", path, err)
		}
		result.PreviewPath = path
	}

	result.Duration = time.Since(start)
	return result, nil
}

func siteCount(chk *checkpoint.CheckPoint) int {
	return len(chk.Electrons) + len(chk.Holes) + len(chk.Defects)
}
