package converter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image2chk/internal/render"
	"image2chk/pkg/checkpoint"
	"image2chk/pkg/config"
	errs "image2chk/pkg/errors"
	"image2chk/pkg/imaging"
	"image2chk/pkg/logger"
)

type fakeImages struct {
	raster *imaging.Raster
	err    error

	mu    sync.Mutex
	paths []string
}

func (f *fakeImages) Load(path string) (*imaging.Raster, error) {
	f.mu.Lock()
	f.paths = append(f.paths, path)
	f.mu.Unlock()
	return f.raster, f.err
}

type fakeTemplates struct {
	files map[string]*checkpoint.CheckPoint
	err   error

	mu     sync.Mutex
	loaded []string
}

func (f *fakeTemplates) Exists(path string) bool {
	_, ok := f.files[path]
	return ok
}

func (f *fakeTemplates) Load(path string) (*checkpoint.CheckPoint, error) {
	f.mu.Lock()
	f.loaded = append(f.loaded, path)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.files[path], nil
}

type fakeSink struct {
	saved map[string]*checkpoint.CheckPoint
	err   error
}

func (f *fakeSink) Save(chk *checkpoint.CheckPoint, path string) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[string]*checkpoint.CheckPoint)
	}
	f.saved[path] = chk
	return nil
}

type fakePreviews struct {
	paths []string
}

func (f *fakePreviews) Render(chk *checkpoint.CheckPoint, path string, opts render.Options) error {
	f.paths = append(f.paths, path)
	return nil
}

func twoByTwo(t *testing.T) *imaging.Raster {
	t.Helper()
	r, err := imaging.FromValues(2, 2, []float64{0, 1, 1, 1})
	require.NoError(t, err)
	return r
}

type harness struct {
	images    *fakeImages
	templates *fakeTemplates
	sink      *fakeSink
	previews  *fakePreviews
	log       *logger.TestLogger
	conv      *Converter
}

func newHarness(t *testing.T) *harness {
	h := &harness{
		images:    &fakeImages{raster: twoByTwo(t)},
		templates: &fakeTemplates{files: map[string]*checkpoint.CheckPoint{}},
		sink:      &fakeSink{},
		previews:  &fakePreviews{},
		log:       logger.NewTestLogger(),
	}
	h.conv = New(
		WithImageSource(h.images),
		WithTemplateSource(h.templates),
		WithSink(h.sink),
		WithPreviewRenderer(h.previews),
		WithLogger(h.log),
	)
	return h
}

func TestRunDefaults(t *testing.T) {
	h := newHarness(t)

	res, err := h.conv.Run(context.Background(), DefaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"image.png"}, h.images.paths)
	assert.Empty(t, h.templates.loaded)
	assert.False(t, res.TemplateUsed)
	assert.Equal(t, "sim.inp", res.Path)
	assert.Same(t, res.CheckPoint, h.sink.saved["sim.inp"])
	assert.Empty(t, res.PreviewPath)
	assert.True(t, h.log.HasMessage("No template, building from image alone"))
}

func TestRunWithoutTemplateUsesDefaults(t *testing.T) {
	h := newHarness(t)

	res, err := h.conv.Run(context.Background(), DefaultRequest())
	require.NoError(t, err)

	want, err := checkpoint.FromRaster(twoByTwo(t), nil, checkpoint.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, want.String(), res.CheckPoint.String())
	assert.Equal(t, want.Parameters.Keys(), res.CheckPoint.Parameters.Keys())
}

func TestRunWithTemplate(t *testing.T) {
	h := newHarness(t)

	template := checkpoint.New()
	template.Parameters.Set("temperature.kelvin", 77)
	h.templates.files["template.inp"] = template

	res, err := h.conv.Run(context.Background(), DefaultRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"template.inp"}, h.templates.loaded)
	assert.True(t, res.TemplateUsed)
	kelvin, _ := res.CheckPoint.Parameters.Get("temperature.kelvin")
	assert.Equal(t, "77", kelvin)
	assert.Nil(t, template.Traps)
	assert.True(t, h.log.HasMessage("Using template"))
}

func TestRunCountsDroppedSites(t *testing.T) {
	h := newHarness(t)

	template := checkpoint.New()
	template.SetGrid(checkpoint.Grid{X: 5, Y: 5, Z: 1})
	template.Electrons = []int{3, 20}
	template.Holes = []int{9}
	h.templates.files["template.inp"] = template

	res, err := h.conv.Run(context.Background(), DefaultRequest())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Dropped)
	assert.Empty(t, res.CheckPoint.Electrons)

	h = newHarness(t)
	res, err = h.conv.Run(context.Background(), DefaultRequest())
	require.NoError(t, err)
	assert.Zero(t, res.Dropped)
}

func TestRunOutputIgnoresImageName(t *testing.T) {
	tests := []struct {
		name string
		req  func(r *Request)
		want string
	}{
		{"custom stub", func(r *Request) { r.Image = "photos/device.jpg"; r.Stub = "run42" }, "run42.inp"},
		{"output dir", func(r *Request) { r.OutputDir = "out" }, filepath.Join("out", "sim.inp")},
		{"compressed", func(r *Request) { r.Compress = true }, "sim.inp.gz"},
		{"custom extension", func(r *Request) { r.Extension = ".chk" }, "sim.chk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			req := DefaultRequest()
			tt.req(&req)

			res, err := h.conv.Run(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Path)
			assert.Contains(t, h.sink.saved, tt.want)
		})
	}
}

func TestRunPreview(t *testing.T) {
	h := newHarness(t)
	req := DefaultRequest()
	req.Preview = true
	req.OutputDir = "out"

	res, err := h.conv.Run(context.Background(), req)
	require.NoError(t, err)

	want := filepath.Join("out", "sim-traps.png")
	assert.Equal(t, want, res.PreviewPath)
	assert.Equal(t, []string{want}, h.previews.paths)
}

func TestRunErrors(t *testing.T) {
	t.Run("image", func(t *testing.T) {
		h := newHarness(t)
		h.images.err = errors.New("decode: unknown format")

		_, err := h.conv.Run(context.Background(), DefaultRequest())
		assert.Equal(t, errs.ErrorTypeImage, errs.TypeOf(err))
		assert.Equal(t, 2, errs.ExitCode(err))
		assert.Empty(t, h.sink.saved)
	})

	t.Run("template", func(t *testing.T) {
		h := newHarness(t)
		h.templates.files["template.inp"] = nil
		h.templates.err = errs.Format("parse", "template.inp", checkpoint.ErrMalformed)

		_, err := h.conv.Run(context.Background(), DefaultRequest())
		assert.Equal(t, errs.ErrorTypeTemplate, errs.TypeOf(err))
		assert.ErrorIs(t, err, checkpoint.ErrMalformed)
		assert.Empty(t, h.sink.saved)
	})

	t.Run("save", func(t *testing.T) {
		h := newHarness(t)
		h.sink.err = errs.IO("save", "sim.inp", os.ErrPermission)

		_, err := h.conv.Run(context.Background(), DefaultRequest())
		assert.Equal(t, errs.ErrorTypeIO, errs.TypeOf(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := h.conv.Run(ctx, DefaultRequest())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, h.sink.saved)
	})
}

func TestRequestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Convert.Stub = "device"
	cfg.Convert.Threshold = "otsu"
	cfg.Convert.Invert = true
	cfg.Output.Compress = true
	cfg.Output.Directory = "runs"

	req, err := RequestFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, imaging.ThresholdOtsu, req.Options.Threshold.Mode)
	assert.True(t, req.Options.Invert)
	assert.Equal(t, filepath.Join("runs", "device.inp.gz"), req.OutputPath())
	assert.Equal(t, filepath.Join("runs", "device-traps.png"), req.PreviewPath())

	def, err := RequestFromConfig(config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "image.png", def.Image)
	assert.Equal(t, "template.inp", def.Template)
	assert.Equal(t, "sim.inp", def.OutputPath())

	cfg.Convert.Threshold = "bright"
	_, err = RequestFromConfig(cfg)
	assert.Equal(t, errs.ErrorTypeConfig, errs.TypeOf(err))
}

func TestRunOnDisk(t *testing.T) {
	dir := t.TempDir()

	img := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetGray(0, 0, color.Gray{})
	imagePath := filepath.Join(dir, "device.png")
	f, err := os.Create(imagePath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	template := checkpoint.New()
	template.SetGrid(checkpoint.Grid{X: 3, Y: 2, Z: 1})
	template.Electrons = []int{1}
	templatePath := filepath.Join(dir, "template.inp")
	require.NoError(t, template.Save(templatePath))

	req := DefaultRequest()
	req.Image = imagePath
	req.Template = templatePath
	req.OutputDir = dir
	req.Preview = true

	res, err := New(WithLogger(logger.NewNopLogger())).Run(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.TemplateUsed)
	assert.Equal(t, filepath.Join(dir, "sim.inp"), res.Path)

	saved, err := checkpoint.Load(res.Path)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, saved.Traps)
	assert.Equal(t, []int{1}, saved.Electrons)
	assert.Equal(t,
		"CheckPoint(grid=3x2x1, electrons=1, holes=0, defects=0, traps=1, trap.percentage=0.166667)",
		saved.String())

	_, err = os.Stat(res.PreviewPath)
	assert.NoError(t, err)

	// a missing template is not an error
	req.Template = filepath.Join(dir, "absent.inp")
	res, err = New(WithLogger(logger.NewNopLogger())).Run(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.TemplateUsed)
}
