package converter

import (
	"image2chk/internal/render"
	"image2chk/pkg/checkpoint"
	"image2chk/pkg/imaging"
	"image2chk/pkg/storage"
)

// ImageSource decodes source images
type ImageSource interface {
	Load(path string) (*imaging.Raster, error)
}

// TemplateSource finds and loads template checkpoints
type TemplateSource interface {
	Exists(path string) bool
	Load(path string) (*checkpoint.CheckPoint, error)
}

// CheckpointSink persists finished checkpoints
type CheckpointSink interface {
	Save(chk *checkpoint.CheckPoint, path string) error
}

// PreviewRenderer writes trap previews
type PreviewRenderer interface {
	Render(chk *checkpoint.CheckPoint, path string, opts render.Options) error
}

// FileImages decodes images from disk
type FileImages struct{}

func (FileImages) Load(path string) (*imaging.Raster, error) {
	return imaging.Load(path)
}

// FileTemplates loads templates from disk
type FileTemplates struct{}

func (FileTemplates) Exists(path string) bool {
	return storage.Exists(path)
}

func (FileTemplates) Load(path string) (*checkpoint.CheckPoint, error) {
	return checkpoint.Load(path)
}

// FileSink saves checkpoints to disk
type FileSink struct{}

func (FileSink) Save(chk *checkpoint.CheckPoint, path string) error {
	return chk.Save(path)
}

// FilePreviews renders previews to disk
type FilePreviews struct{}

func (FilePreviews) Render(chk *checkpoint.CheckPoint, path string, opts render.Options) error {
	return render.SaveTraps(chk, path, opts)
}
