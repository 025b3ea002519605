package influx

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basicai/pceditor/internal/command"
	"github.com/basicai/pceditor/internal/config"
	"github.com/basicai/pceditor/internal/util"
)

func TestProcessMetricData(t *testing.T) {
	data := []string{`"editor_performance"`, `"render"`, `"tag::view::main"`, `"field::int::points::120000"`, `"field::float::fps::59.5"`, `"field::string::mode::top"`}

	bucket, point, err := ProcessMetricData(data, util.FixEscapeQuotes, util.TrimQuotes)

	require.NoError(t, err)
	assert.Equal(t, "editor_performance", bucket)
	assert.Equal(t, "render", point.Name())
	line := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	assert.Contains(t, line, "view=main")
	assert.Contains(t, line, "points=120000i")
	assert.Contains(t, line, "fps=59.5")
	assert.Contains(t, line, `mode="top"`)
}

func TestProcessMetricData_Errors(t *testing.T) {
	_, _, err := ProcessMetricData([]string{"only-bucket"}, util.FixEscapeQuotes, util.TrimQuotes)
	assert.Error(t, err)

	_, _, err = ProcessMetricData([]string{"b", "m", "field::int::n::abc"}, util.FixEscapeQuotes, util.TrimQuotes)
	assert.Error(t, err)
}

func TestEditPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	ev := command.Event{Type: "update-object-user-data", Action: command.ActionUndo, Source: "edit_class"}

	line := influxdb2_write.PointToLineProtocol(EditPoint(ev, "frame-7", at), time.Nanosecond)

	assert.Contains(t, line, "edit,")
	assert.Contains(t, line, "command=update-object-user-data")
	assert.Contains(t, line, "action=undo")
	assert.Contains(t, line, "source=edit_class")
	assert.Contains(t, line, "frame=frame-7")
	assert.Contains(t, line, "count=1i")
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{Enabled: false})
	assert.Error(t, m.Connect(context.Background()))
}

func TestRecorder_WritesToBackupWhenOffline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.gz")
	m := NewManager(zerolog.Nop(), config.InfluxConfig{BackupPath: path})
	require.NoError(t, m.openBackup())

	rec := m.Recorder(func() string { return "f1" })
	rec(command.Event{Type: "add-object", Action: command.ActionExecute})
	rec(command.Event{Type: "add-object", Action: command.ActionUndo})
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(raw), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "action=execute")
	assert.Contains(t, string(lines[1]), "action=undo")
	assert.Contains(t, string(lines[1]), "frame=f1")
}

func TestWritePoint_NoBackend(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{})
	err := m.WritePoint(BucketEdits, influxdb2_write.NewPointWithMeasurement("edit"))
	assert.Error(t, err)
}

func TestNewManager_CustomBucket(t *testing.T) {
	m := NewManager(zerolog.Nop(), config.InfluxConfig{Bucket: "labels"})
	assert.Equal(t, "labels", m.EditBucket())
	assert.Equal(t, []string{"labels", BucketPerformance}, m.BucketNames)
}
