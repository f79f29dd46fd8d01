package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOutput(t *testing.T) {
	tests := []struct {
		stub, name, ext string
		want            string
	}{
		{"sim", "", "inp", "sim.inp"},
		{"sim", "", ".inp", "sim.inp"},
		{"sim", "traps", "png", "sim-traps.png"},
		{"out/run", "", "inp", "out/run.inp"},
		{"sim", "", "", "sim"},
		{"", "traps", "png", "traps.png"},
		{"sim", "", "inp.gz", "sim.inp.gz"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatOutput(tt.stub, tt.name, tt.ext))
	}
}

func TestInDirectory(t *testing.T) {
	assert.Equal(t, "sim.inp", InDirectory("", "sim.inp"))
	assert.Equal(t, filepath.Join("out", "sim.inp"), InDirectory("out", "sim.inp"))
	assert.Equal(t, "/abs/sim.inp", InDirectory("out", "/abs/sim.inp"))
}

func TestExistsOnlyForFiles(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, Exists(dir))
	assert.False(t, Exists(""))
	assert.False(t, Exists(filepath.Join(dir, "missing.inp")))
}

func TestIsCompressed(t *testing.T) {
	assert.True(t, IsCompressed("sim.inp.gz"))
	assert.True(t, IsCompressed("SIM.INP.GZ"))
	assert.False(t, IsCompressed("sim.inp"))
}

func TestAtomicWritePlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sim.inp")

	err := AtomicWrite(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "[Traps]\n0\n")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[Traps]\n0\n", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must be renamed away")
	assert.True(t, Exists(path))
}

func TestAtomicWriteCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.inp.gz")

	require.NoError(t, AtomicWrite(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "compressed body")
		return err
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, gzipMagic))

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "compressed body", string(body))
	assert.Equal(t, "sim.inp", zr.Name)
}

func TestAtomicWriteFailureKeepsOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.inp")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0644))

	boom := errors.New("encode failed")
	err := AtomicWrite(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.False(t, Exists(path+".tmp"))
}

func TestOpenReader(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.inp")
	require.NoError(t, os.WriteFile(plain, []byte("plain text"), 0644))

	// compressed content behind a misleading extension
	packed := filepath.Join(dir, "packed.inp")
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("packed text"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(packed, buf.Bytes(), 0644))

	empty := filepath.Join(dir, "empty.inp")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	for path, want := range map[string]string{plain: "plain text", packed: "packed text", empty: ""} {
		rc, err := OpenReader(path)
		require.NoError(t, err, path)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, want, string(got))
	}

	_, err = OpenReader(filepath.Join(dir, "missing.inp"))
	assert.True(t, os.IsNotExist(err))
}
