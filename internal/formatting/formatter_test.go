package formatting

import (
	"bytes"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"warden/internal/api"
)

func sampleSnapshots() []api.StateSnapshot {
	return []api.StateSnapshot{
		{Name: "app", Type: api.TypeSimple, State: api.StateFailed, RestartCount: 3,
			LastExit: api.ExitStatus{Kind: api.ExitFailure, Code: 2}, Since: time.Now(), Reason: "restart limit 3 reached"},
		{Name: "db", Type: api.TypeNotify, State: api.StateActive, PID: 321, Since: time.Now()},
	}
}

func TestTableFormatter_Snapshots(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatTable, Out: &buf})

	require.NoError(t, f.FormatSnapshots(sampleSnapshots()))
	out := buf.String()
	assert.Contains(t, out, "SERVICE")
	assert.Contains(t, out, "failure (code 2)")
	assert.Contains(t, out, "321")
	assert.Contains(t, out, "active")
	assert.NotContains(t, out, "\x1b[", "no colour codes without Color")
}

func TestTableFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatTable, Out: &buf})

	require.NoError(t, f.FormatSnapshots(nil))
	assert.Equal(t, "No services found\n", buf.String())
}

func TestTableFormatter_Detail(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatTable, Out: &buf})

	stats := &api.ProcessStats{PID: 321, Name: "postgres", RSS: 2048, NumThreads: 4}
	require.NoError(t, f.FormatSnapshot(sampleSnapshots()[1], stats))
	out := buf.String()
	assert.Contains(t, out, "postgres")
	assert.Contains(t, out, "2.0 KiB")
}

func TestTableFormatter_Levels(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatTable, Out: &buf})

	require.NoError(t, f.FormatLevels([][]string{{"network.target"}, {"cache", "db"}}))
	assert.Contains(t, buf.String(), "cache db")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatJSON, Out: &buf})

	require.NoError(t, f.FormatSnapshots(sampleSnapshots()))
	snaps, err := api.DecodeSnapshots(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 321, snaps[1].PID)

	buf.Reset()
	require.NoError(t, f.FormatDefinitions(nil))
	assert.JSONEq(t, "[]", buf.String())

	buf.Reset()
	require.NoError(t, f.FormatLevels([][]string{{"a"}, {"b"}}))
	var levels []levelView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &levels))
	assert.Equal(t, []levelView{{Level: 0, Services: []string{"a"}}, {Level: 1, Services: []string{"b"}}}, levels)
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := New(Options{Format: FormatYAML, Out: &buf})

	require.NoError(t, f.FormatLevels([][]string{{"a", "b"}}))
	var levels []levelView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &levels))
	assert.Equal(t, []string{"a", "b"}, levels[0].Services)
}

func TestParseFormat(t *testing.T) {
	f, ok := ParseFormat("json")
	assert.True(t, ok)
	assert.Equal(t, FormatJSON, f)

	_, ok = ParseFormat("xml")
	assert.False(t, ok)
}
