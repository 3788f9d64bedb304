package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShow(t *testing.T) {
	out, err := run(t, "", "config", "show")
	require.NoError(t, err)
	assert.Regexp(t, `listen: ['"]?:80['"]?\n`, out)
	assert.Contains(t, out, "readTimeout: 2s")
	assert.Contains(t, out, "sourceHeight: 128")
}

func TestConfigShowWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":8080\"\n"), 0o600))

	out, err := run(t, "", "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Regexp(t, `listen: ['"]?:8080['"]?\n`, out)
}

func TestConfigShowRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nope: 1\n"), 0o600))

	_, err := run(t, "", "--config", path, "config", "show")
	assert.Error(t, err)
}

func TestRenderFormBody(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	// First pixel black, everything else white.
	hex := "7f" + strings.Repeat("ff", 32*128-1)

	_, err := run(t, "image_data="+hex+"&next=1\n", "render", "--out", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	assert.Equal(t, 250, img.Bounds().Dx())
	assert.Equal(t, 122, img.Bounds().Dy())
	r, _, _, _ := img.At(0, 0).RGBA()
	assert.Zero(t, r)
	r, _, _, _ = img.At(1, 0).RGBA()
	assert.Equal(t, uint32(0xFFFF), r)
}

func TestRenderRejectsShortInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "frame.png")
	_, err := run(t, "ffff", "render", "--out", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too short")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRenderBoot(t *testing.T) {
	out := filepath.Join(t.TempDir(), "boot.png")
	_, err := run(t, "", "render", "--boot", "--out", out)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
