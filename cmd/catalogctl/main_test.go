package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/catalog/internal/core"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brakeJobsCSV = `Subcategory,Job,Description,Estimated Time,Price
Brakes,Pad Replacement,,60,150
Brakes,Rotor Resurface,,90,80
Engine,Oil Change,,30,45
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	var out, errOut bytes.Buffer
	code = run(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

// ============================================================================
// Import Tests
// ============================================================================

func TestImport_DryRun(t *testing.T) {
	path := writeFile(t, "BrakeJobs.csv", brakeJobsCSV)

	code, out, errOut := runCLI(t, "import", "--dry-run", "--sector", "Automotive", path)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `Sector "Automotive" (skip mode, dry run)`)
	assert.Contains(t, out, "1 categories, 2 subcategories, 3 services")
	assert.Contains(t, out, "3 created, 0 updated, 0 unchanged")
	assert.Contains(t, errOut, "[100%] complete")
}

func TestImport_JSON(t *testing.T) {
	path := writeFile(t, "BrakeJobs.csv", brakeJobsCSV)

	code, out, errOut := runCLI(t, "import", "--dry-run", "--json", "-s", "Automotive", "--detect-duplicates", path)
	require.Equal(t, 0, code, errOut)

	var stats core.ImportStats
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, 3, stats.TotalServices)
	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Empty(t, stats.Duplicates)
	assert.NotContains(t, errOut, "complete", "no progress lines with --json")
}

func TestImport_Errors(t *testing.T) {
	good := writeFile(t, "BrakeJobs.csv", brakeJobsCSV)
	notes := writeFile(t, "notes.md", "# not a catalog")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing sector", []string{"import", "--dry-run", good}, `required flag(s) "sector" not set`},
		{"no files", []string{"import", "--dry-run", "-s", "Automotive"}, "requires at least 1 arg"},
		{"missing file", []string{"import", "--dry-run", "-s", "Automotive", filepath.Join(t.TempDir(), "gone.csv")}, "gone.csv"},
		{"nothing readable", []string{"import", "--dry-run", "-q", "-s", "Automotive", notes}, "IMP006"},
		{"bad mode", []string{"import", "--dry-run", "-q", "-s", "Automotive", "--mode", "merge", good}, "VAL005"},
		{"bad delimiter", []string{"import", "--dry-run", "-s", "Automotive", "--delimiter", "::", good}, "single character"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, errOut, tt.want)
		})
	}
}

func TestImport_PartialFailureStillSucceeds(t *testing.T) {
	good := writeFile(t, "BrakeJobs.csv", brakeJobsCSV)
	notes := writeFile(t, "notes.md", "# not a catalog")

	code, out, errOut := runCLI(t, "import", "--dry-run", "-q", "-s", "Automotive", good, notes)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "1 processed, 1 failed")
	assert.Contains(t, out, "Errors (1):")
	assert.Contains(t, out, "[PARSE006] notes.md")
}

// ============================================================================
// Maintenance Tests
// ============================================================================

func TestCounts_JSON(t *testing.T) {
	code, out, errOut := runCLI(t, "counts", "--dry-run", "--json")
	require.Equal(t, 0, code, errOut)

	var c taxonomy.Counts
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Zero(t, c.Total())
}

func TestReset(t *testing.T) {
	code, _, errOut := runCLI(t, "reset", "--dry-run")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "--yes")

	code, out, errOut := runCLI(t, "reset", "--dry-run", "--yes")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Deleted:")
}

func TestRelocate_InvalidIDs(t *testing.T) {
	code, _, errOut := runCLI(t, "relocate", "--dry-run", "not-a-uuid", "also-not")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "category id")

	code, _, _ = runCLI(t, "relocate", "--dry-run", "only-one")
	assert.Equal(t, 1, code)
}

func TestRelocate_UnknownCategory(t *testing.T) {
	code, _, errOut := runCLI(t, "relocate", "--dry-run",
		"1b4e28ba-2fa1-11d2-883f-0016d3cca427", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "STORE004")
}

func TestDuplicates_Names(t *testing.T) {
	code, out, errOut := runCLI(t, "duplicates", "Brakes", "Brake", "Engine")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, `"Brakes" ~ "Brake" (0.83)`)
	assert.NotContains(t, out, "Engine")

	code, out, _ = runCLI(t, "duplicates", "--threshold", "0.9", "Brakes", "Brake")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No similar names found")

	code, _, errOut = runCLI(t, "duplicates", "Brakes")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "at least two names")
}

func TestNeedsDatabaseWithoutDryRun(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")

	code, _, errOut := runCLI(t, "counts")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "DATABASE_URL")
	assert.Contains(t, errOut, "--dry-run")
}
