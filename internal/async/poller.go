package async

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/client"
	"github.com/kelsos/cvat-cli/internal/config"
	"github.com/kelsos/cvat-cli/internal/logger"
)

// Transport is the part of the API client the poller needs
type Transport interface {
	GetStatus(ctx context.Context, url string) (int, error)
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// ExportPoller drives the dump protocol: request the export, wait until the
// server answers 201, then download the artifact.
type ExportPoller struct {
	transport Transport
	endpoints client.Endpoints
	policy    config.PollPolicy
}

func NewExportPoller(transport Transport, endpoints client.Endpoints, policy config.PollPolicy) *ExportPoller {
	return &ExportPoller{
		transport: transport,
		endpoints: endpoints,
		policy:    policy,
	}
}

// errPending marks a poll that got a 2xx other than 201
var errPending = errors.New("export pending")

// Export dumps the annotations of a task in format and writes them to dest
func (p *ExportPoller) Export(ctx context.Context, taskID int, taskName, format, dest string) error {
	exportURL := p.endpoints.TaskAnnotations(taskID, taskName, format)

	attempts, err := p.waitReady(ctx, taskID, exportURL)
	if err != nil {
		return err
	}
	logger.Debug("Export of task %d ready after %d requests", taskID, attempts)

	size, err := p.download(ctx, client.DownloadURL(exportURL), dest)
	if err != nil {
		return fmt.Errorf("failed to download dump of task %d: %w", taskID, err)
	}

	logger.Info("Dumped task %d (%s) to %s (%s)", taskID, format, dest, humanize.Bytes(uint64(size)))
	return nil
}

// waitReady polls exportURL until it answers 201 and returns the number of requests made
func (p *ExportPoller) waitReady(ctx context.Context, taskID int, exportURL string) (int, error) {
	attempts := 0
	operation := func() error {
		attempts++
		status, err := p.transport.GetStatus(ctx, exportURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		logger.Info("Task %d export STATUS %d (attempt %d)", taskID, status, attempts)
		if status == http.StatusCreated {
			return nil
		}
		return errPending
	}

	err := backoff.Retry(operation, p.newBackOff(ctx))
	switch {
	case err == nil:
		return attempts, nil
	case errors.Is(err, errPending):
		return attempts, fmt.Errorf("task %d: %w after %d requests", taskID, apierr.ErrExportNotReady, attempts)
	default:
		return attempts, fmt.Errorf("failed to export task %d: %w", taskID, err)
	}
}

func (p *ExportPoller) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.policy.InitialInterval
	exp.MaxInterval = p.policy.MaxInterval
	exp.Multiplier = p.policy.Multiplier
	exp.MaxElapsedTime = p.policy.MaxElapsed

	var b backoff.BackOff = exp
	if p.policy.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.policy.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// download writes the artifact next to dest and renames it into place, so a
// failed transfer never leaves a truncated file behind.
func (p *ExportPoller) download(ctx context.Context, downloadURL, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file for %s: %w", dest, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := p.transport.Download(ctx, downloadURL, tmp)
	if err == nil {
		// CreateTemp opens the file 0600; dumps are regular shared files
		if chmodErr := tmp.Chmod(0644); chmodErr != nil {
			err = fmt.Errorf("failed to set mode of %s: %w", tmpPath, chmodErr)
		}
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write %s: %w", tmpPath, closeErr)
	}
	if err != nil {
		return size, err
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return size, fmt.Errorf("failed to move dump into %s: %w", dest, err)
	}
	return size, nil
}
