package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image2chk/pkg/checkpoint"
	errs "image2chk/pkg/errors"
	"image2chk/pkg/ui"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--no-color", "--log-level", "error"))

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// workspace moves into an empty directory holding image.png, a 3x2 image
// whose top-left pixel is black
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)
	for _, name := range []string{"IMAGE", "STUB", "TEMPLATE", "THRESHOLD", "INVERT", "SCALE_POTENTIAL",
		"COMPRESS", "PREVIEW", "OUTPUT_DIR", "LOG_LEVEL", "LOG_FILE"} {
		t.Setenv("IMAGE2CHK_"+name, "")
	}

	img := image.NewGray(image.Rect(0, 0, 3, 2))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetGray(0, 0, color.Gray{})

	f, err := os.Create(filepath.Join(dir, "image.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return dir
}

func TestConvertDefaults(t *testing.T) {
	dir := workspace(t)

	out, err := execute(t)
	require.NoError(t, err)

	assert.Equal(t,
		"CheckPoint(grid=3x2x1, electrons=0, holes=0, defects=0, traps=1, trap.percentage=0.166667)\n"+
			"saved: sim.inp\n",
		out)

	chk, err := checkpoint.Load(filepath.Join(dir, "sim.inp"))
	require.NoError(t, err)
	assert.Equal(t, []int{3}, chk.Traps)
}

func TestConvertWithTemplateAndStub(t *testing.T) {
	dir := workspace(t)
	require.NoError(t, os.Rename(filepath.Join(dir, "image.png"), filepath.Join(dir, "device.png")))

	template := checkpoint.New()
	template.SetGrid(checkpoint.Grid{X: 3, Y: 2, Z: 2})
	require.NoError(t, template.Save(filepath.Join(dir, "template.inp")))

	out, err := execute(t, "device.png", "--stub", "run")
	require.NoError(t, err)

	assert.Equal(t,
		"CheckPoint(grid=3x2x2, electrons=0, holes=0, defects=0, traps=2, trap.percentage=0.166667)\n"+
			"saved: run.inp\n",
		out)
	assert.FileExists(t, filepath.Join(dir, "run.inp"))
	assert.NoFileExists(t, filepath.Join(dir, "device.inp"))
}

func TestConvertEmptyTemplateFlagSkipsTemplate(t *testing.T) {
	dir := workspace(t)

	template := checkpoint.New()
	template.SetGrid(checkpoint.Grid{X: 3, Y: 2, Z: 4})
	require.NoError(t, template.Save(filepath.Join(dir, "template.inp")))

	out, err := execute(t, "--template", "")
	require.NoError(t, err)
	assert.Equal(t,
		"CheckPoint(grid=3x2x1, electrons=0, holes=0, defects=0, traps=1, trap.percentage=0.166667)\n"+
			"saved: sim.inp\n",
		out)

	_, err = execute(t, "--stub", "")
	assert.Equal(t, 6, errs.ExitCode(err))
	assert.NoFileExists(t, filepath.Join(dir, ".inp"))
}

func TestConvertSupplementaryFlags(t *testing.T) {
	dir := workspace(t)

	out, err := execute(t, "--invert", "--compress", "--preview", "--output-dir", "runs")
	require.NoError(t, err)

	assert.Contains(t, out, "traps=5")
	assert.Contains(t, out, "saved: "+filepath.Join("runs", "sim.inp.gz"))
	assert.FileExists(t, filepath.Join(dir, "runs", "sim-traps.png"))

	chk, err := checkpoint.Load(filepath.Join(dir, "runs", "sim.inp.gz"))
	require.NoError(t, err)
	assert.Len(t, chk.Traps, 5)
}

func TestConvertErrors(t *testing.T) {
	workspace(t)

	_, err := execute(t, "missing.png")
	require.Error(t, err)
	assert.Equal(t, 2, errs.ExitCode(err))

	require.NoError(t, os.WriteFile("template.inp", []byte("[Traps]\n1\n"), 0644))
	_, err = execute(t)
	assert.Equal(t, 3, errs.ExitCode(err))
	require.NoError(t, os.Remove("template.inp"))

	_, err = execute(t, "--threshold", "bright")
	assert.Equal(t, 6, errs.ExitCode(err))

	_, err = execute(t, "a.png", "b.png")
	assert.Equal(t, 1, errs.ExitCode(err))
}

func TestReportError(t *testing.T) {
	var stderr bytes.Buffer
	prev, prevColor := ui.Err, ui.ColorEnabled()
	ui.Err = &stderr
	ui.SetColor(false)
	t.Cleanup(func() {
		ui.Err = prev
		ui.SetColor(prevColor)
	})

	code := reportError(errs.New(errs.ErrorTypeConfig, "load", "x.yaml", errors.New("bad level")))
	assert.Equal(t, 6, code)
	assert.Contains(t, stderr.String(), "image2chk: config error: load x.yaml: bad level")
	assert.Contains(t, stderr.String(), "image2chk config validate")

	stderr.Reset()
	code = reportError(errs.Image("load", "a.png", errors.New("no such file")))
	assert.Equal(t, 2, code)
	assert.NotContains(t, stderr.String(), "config validate")
}

func TestInspect(t *testing.T) {
	workspace(t)
	_, err := execute(t)
	require.NoError(t, err)

	out, err := execute(t, "inspect", "sim.inp", "--params")
	require.NoError(t, err)

	assert.Contains(t, out, "3x2x1")
	assert.Contains(t, out, "trap.percentage")
	assert.Contains(t, out, "temperature.kelvin")

	_, err = execute(t, "inspect", "nothing.inp")
	assert.Equal(t, 5, errs.ExitCode(err))
}

func TestPreviewCommand(t *testing.T) {
	dir := workspace(t)
	_, err := execute(t, "--compress")
	require.NoError(t, err)

	out, err := execute(t, "preview", "sim.inp.gz")
	require.NoError(t, err)
	assert.Equal(t, "saved: sim-traps.png\n", out)
	assert.FileExists(t, filepath.Join(dir, "sim-traps.png"))

	_, err = execute(t, "preview", "sim.inp.gz", "-o", "custom.svg")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "custom.svg"))
}

func TestPreviewPathFor(t *testing.T) {
	assert.Equal(t, "sim-traps.png", previewPathFor("sim.inp", "traps"))
	assert.Equal(t, filepath.Join("out", "run-traps.png"), previewPathFor(filepath.Join("out", "run.inp.gz"), "traps"))
}

func TestConfigCommands(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "settings.toml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", "--config", path)
	assert.Equal(t, 6, errs.ExitCode(err))

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "[convert]")
	assert.Contains(t, out, "template.inp")

	_, err = execute(t, "config", "validate", "--config", path)
	assert.NoError(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24)
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}
