package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/logger"
)

const frameJPEGQuality = 95

// FrameFilename returns the file name a downloaded frame is stored under
func FrameFilename(taskID, frameID int) string {
	return fmt.Sprintf("task_%d_frame_%06d.jpg", taskID, frameID)
}

// FetchFrame downloads one frame of a task and stores it as JPEG in outDir
func (s *TaskService) FetchFrame(ctx context.Context, taskID, frameID int, outDir string) (string, error) {
	data, err := s.client.GetBytes(ctx, s.endpoints.TaskFrame(taskID, frameID))
	if err != nil {
		return "", fmt.Errorf("failed to fetch frame %d of task %d: %w", frameID, taskID, err)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", &apierr.DecodeError{What: fmt.Sprintf("frame %d of task %d", frameID, taskID), Err: err}
	}

	// JPEG frames are kept byte for byte, anything else is converted
	if format != "jpeg" {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: frameJPEGQuality}); err != nil {
			return "", fmt.Errorf("failed to encode frame %d of task %d: %w", frameID, taskID, err)
		}
		data = buf.Bytes()
	}

	path := filepath.Join(outDir, FrameFilename(taskID, frameID))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write frame %s: %w", path, err)
	}

	logger.Info("Saved frame %d of task %d to %s (%s, %s)", frameID, taskID, path, format, humanize.Bytes(uint64(len(data))))
	return path, nil
}

// FetchFrames downloads the given frames of a task, stopping at the first failure
func (s *TaskService) FetchFrames(ctx context.Context, taskID int, frameIDs []int, outDir string) ([]string, error) {
	if outDir == "" {
		outDir = "."
	}

	paths := make([]string, 0, len(frameIDs))
	for _, frameID := range frameIDs {
		path, err := s.FetchFrame(ctx, taskID, frameID, outDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
