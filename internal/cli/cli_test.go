package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dial-a-ride/internal/models"
)

// osrmStub answers every table request with ten minutes per destination
func osrmStub(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := len(strings.Split(r.URL.Query().Get("destinations"), ";"))
		row := make([]float64, n)
		for i := range row {
			row[i] = 600
		}
		json.NewEncoder(w).Encode(map[string]any{"code": "Ok", "durations": [][]float64{row}})
	}))
	t.Cleanup(server.Close)
	return server
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeTrips(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "trips.csv")
	csv := "id,origin_lat,origin_lng,dest_lat,dest_lng,pickup_time,direct_seconds\n" +
		"1,35.90,-78.90,35.95,-78.95,08:00,600\n" +
		"2,35.96,-78.96,35.99,-78.99,10:00,600\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "darp dev")
}

func TestScheduleAndRunsCmds(t *testing.T) {
	dir := t.TempDir()
	osrm := osrmStub(t)
	tripsFile := writeTrips(t, dir)
	common := []string{
		"--osrm-url", osrm.URL,
		"--osrm-rate", "0",
		"--nominatim-url", "",
		"--database-url", filepath.Join(dir, "darp.db"),
		"--vehicles", "2",
		"--workers", "2",
	}

	out, err := run(t, append([]string{"schedule", tripsFile}, common...)...)
	require.NoError(t, err)

	var rep models.ScheduleReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 2, rep.Summary.CommittedTrips)
	assert.Len(t, rep.Routes, 2)
	require.NotEmpty(t, rep.RunID)

	out, err = run(t, append([]string{"runs", "list"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, rep.RunID)

	out, err = run(t, append([]string{"runs", "show", rep.RunID}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "committed_trips: 2")

	out, err = run(t, append([]string{"cache", "stats"}, common...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "travel times stored (sqlite)")
	assert.False(t, strings.HasPrefix(out, "0 "))
}

func TestScheduleYAMLToFile(t *testing.T) {
	dir := t.TempDir()
	osrm := osrmStub(t)
	output := filepath.Join(dir, "report.yaml")

	_, err := run(t, "schedule", writeTrips(t, dir),
		"--osrm-url", osrm.URL, "--osrm-rate", "0", "--nominatim-url", "", "--database-url", "",
		"--format", "yaml", "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "committed_trips: 2")
}

func TestCacheWarmAndClear(t *testing.T) {
	dir := t.TempDir()
	osrm := osrmStub(t)
	common := []string{"--osrm-url", osrm.URL, "--osrm-rate", "0", "--nominatim-url", "", "--database-url", filepath.Join(dir, "darp.db")}

	out, err := run(t, append([]string{"cache", "warm", writeTrips(t, dir)}, common...)...)
	require.NoError(t, err)
	// four endpoints, twelve ordered pairs
	assert.Contains(t, out, "store holds 12 pairs")

	_, err = run(t, append([]string{"cache", "clear"}, common...)...)
	require.NoError(t, err)

	out, err = run(t, append([]string{"cache", "stats"}, common...)...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "0 travel times stored"))
}

func TestCommandsNeedDatabase(t *testing.T) {
	for _, args := range [][]string{
		{"runs", "list"},
		{"runs", "show", "x"},
		{"cache", "stats"},
		{"cache", "clear"},
	} {
		_, err := run(t, append(args, "--database-url", "")...)
		assert.ErrorIs(t, err, errNoDatabase, strings.Join(args, " "))
	}
}

func TestScheduleErrors(t *testing.T) {
	_, err := run(t, "schedule")
	assert.Error(t, err)

	_, err = run(t, "schedule", "missing.csv", "--database-url", "")
	assert.Error(t, err)

	_, err = run(t, "schedule", "missing.csv", "--format", "xml", "--database-url", "")
	assert.ErrorContains(t, err, "unknown report format")

	_, err = run(t, "schedule", "missing.csv", "--capacity", "-1", "--database-url", "")
	assert.Error(t, err)
}
