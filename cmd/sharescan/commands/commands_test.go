package commands

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sharescan/pkg/directory"
	"github.com/marmos91/sharescan/pkg/export"
	"github.com/marmos91/sharescan/pkg/scan"
)

func TestExitCode(t *testing.T) {
	enumErr := &directory.EnumerationError{Server: "HOST", Status: 5, Err: errors.New("access denied")}
	exportErr := &export.ExportError{Destination: "out.csv", Err: errors.New("read-only file system")}

	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitScanFailed, ExitCode(enumErr))
	assert.Equal(t, ExitScanFailed, ExitCode(fmt.Errorf("scan: %w", enumErr)))
	assert.Equal(t, ExitExportError, ExitCode(exportErr))
	assert.Equal(t, ExitError, ExitCode(errors.New("boom")))
}

func TestCountRisky(t *testing.T) {
	records := []scan.ShareRecord{
		{ShareName: "Public", Permission: scan.PermissionAll},
		{ShareName: "Drop", Permission: scan.PermissionWrite},
		{ShareName: "Docs", Permission: scan.PermissionRead},
		{ShareName: "IPC$", Permission: scan.PermissionUnknown},
	}
	assert.Equal(t, 2, countRisky(records))
	assert.Equal(t, 0, countRisky(nil))
}

func TestConfirmExport(t *testing.T) {
	dir := t.TempDir()

	t.Run("NewFile", func(t *testing.T) {
		ok, err := confirmExport(filepath.Join(dir, "new.csv"), false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("S3Destination", func(t *testing.T) {
		ok, err := confirmExport("s3://audits/shares.csv", false)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ExistingFileWithForce", func(t *testing.T) {
		path := filepath.Join(dir, "existing.csv")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

		ok, err := confirmExport(path, true)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(`servers:
  - name: HOST
    shares:
      - name: Public
        type: disk
        permissions: 0x7F
      - name: Docs
        type: disk
        comment: Team docs
        permissions: 0x01
`), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	logPath := filepath.Join(dir, "sharescan.log")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`logging:
  output: %q
scan:
  backend: fixture
  fixture_path: %q
`, logPath, fixture)), 0o644))

	dest := filepath.Join(dir, "shares.csv")

	var stdout bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "--no-color", "-o", "json", "scan", "HOST", "--export", dest, "--force"})
	require.NoError(t, root.Execute())

	assert.Contains(t, stdout.String(), `"Public"`)
	assert.Contains(t, stdout.String(), `"Docs"`)

	f, err := os.Open(dest)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	records, err := export.Decode(f)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Public", records[0].ShareName)
	assert.Equal(t, "Team docs", records[1].Comment)
}
