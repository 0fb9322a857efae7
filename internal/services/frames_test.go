package services

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/cvat-cli/internal/apierr"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	return img
}

func frameServer(t *testing.T, body []byte) *TaskService {
	return newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/tasks/3/frames/12", r.URL.Path)
		_, _ = w.Write(body)
	}), nil)
}

func TestFetchFrameConvertsToJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))
	service := frameServer(t, buf.Bytes())

	outDir := t.TempDir()
	path, err := service.FetchFrame(context.Background(), 3, 12, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "task_3_frame_000012.jpg"), path)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	_, format, err := image.DecodeConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestFetchFrameKeepsJPEGBytes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(), &jpeg.Options{Quality: 40}))
	service := frameServer(t, buf.Bytes())

	path, err := service.FetchFrame(context.Background(), 3, 12, t.TempDir())
	require.NoError(t, err)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), written)
}

func TestFetchFrameUndecodable(t *testing.T) {
	service := frameServer(t, []byte("not an image"))

	outDir := t.TempDir()
	_, err := service.FetchFrame(context.Background(), 3, 12, outDir)

	var de *apierr.DecodeError
	require.True(t, errors.As(err, &de))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFetchFramesStopsAtFirstFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage()))

	service := newTestTaskService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/tasks/3/frames/2" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}), nil)

	paths, err := service.FetchFrames(context.Background(), 3, []int{1, 2, 4}, t.TempDir())

	assert.True(t, apierr.IsNotFound(err))
	assert.Len(t, paths, 1)
}
