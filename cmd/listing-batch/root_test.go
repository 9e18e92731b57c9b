package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJobs(t *testing.T) {
	input := strings.Join([]string{
		`{"car_id": 1, "car": {"vin": "1HGCM82633A004352"}}`,
		``,
		`# comment`,
		`{"car_id": "a-2", "car": {"vin": "X"}, "images": []}`,
		`{not json`,
	}, "\n")

	jobs, rejected, err := readJobs(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, 1, jobs[0].Seq)
	assert.Equal(t, "1", jobs[0].Request.CarID.String())
	assert.Equal(t, 4, jobs[1].Seq)
	assert.Equal(t, "a-2", jobs[1].Request.CarID.String())

	require.Len(t, rejected, 1)
	assert.Equal(t, 5, rejected[0].Seq)
	assert.Contains(t, rejected[0].Error, "invalid json")
}

func TestRootCmd_Offline(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("VISION_BACKEND", "none")
	t.Setenv("LLM_PROVIDER", "none")
	t.Setenv("FETCH_CACHE_DSN", "")

	dir := t.TempDir()
	input := filepath.Join(dir, "in.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(
		`{"car_id": 1, "car": {"vin": "1HGCM82633A004352"}}`+"\n"+
			`{"car_id": 2, "car": {}}`+"\n"), 0o600))
	xlsxPath := filepath.Join(dir, "reports", "out.xlsx")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{input, "--xlsx", xlsxPath, "--markdown", "-", "--workers", "2"})
	require.NoError(t, cmd.Execute())

	info, err := os.Stat(xlsxPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	out := stdout.String()
	assert.Contains(t, out, "# Listing Verification Report")
	assert.Contains(t, out, "0.2500")
	assert.Contains(t, out, "car.vin is required")
}

func TestRootCmd_RequiresInput(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	assert.Error(t, cmd.Execute())
}
