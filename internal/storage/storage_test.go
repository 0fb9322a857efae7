package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/cvat-cli/internal/models"
)

func sampleReport() *models.BatchReport {
	report := models.NewBatchReport("mass_dump")
	report.Add(models.ItemResult{Item: "1", TaskID: 1, TaskName: "a", Path: "out/a.xml", Status: models.ItemDumped})
	report.Add(models.ItemResult{Item: "2", TaskID: 2, Status: models.ItemSkipped, Reason: "task not found"})
	report.Finish(false)
	return report
}

func TestSaveAndLoadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	report := sampleReport()

	require.NoError(t, SaveReport(path, report))

	loaded, err := LoadReport(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, report.Operation, loaded.Operation)
	assert.Equal(t, report.Items, loaded.Items)
	assert.True(t, report.StartedAt.Equal(loaded.StartedAt))
	assert.Equal(t, "mass_dump: 0 created, 1 dumped, 1 skipped, 0 failed", loaded.Summary())
}

func TestLoadReportMissingFile(t *testing.T) {
	loaded, err := LoadReport(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadReportCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	_, err := LoadReport(path)
	assert.ErrorContains(t, err, "failed to unmarshal batch report")
}

func TestSaveLastReportUsesAppDataDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := SaveLastReport(sampleReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".cvat-cli", "mass_dump_last_report.json"), path)
	assert.FileExists(t, path)
}
