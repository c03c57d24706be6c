package monitor

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-technocrane/pkg/kinematics"
	"github.com/teslashibe/go-technocrane/pkg/preset"
	"github.com/teslashibe/go-technocrane/pkg/protocol"
	"github.com/teslashibe/go-technocrane/pkg/recorder"
	"github.com/teslashibe/go-technocrane/pkg/telemetry"
)

type fakeRig struct {
	mu     sync.Mutex
	table  *preset.Table
	preset preset.Preset
	live   bool
}

func newFakeRig(table *preset.Table) *fakeRig {
	p, _ := table.Get(preset.TechnoDolly)
	return &fakeRig{table: table, preset: p, live: true}
}

func (r *fakeRig) Preset() preset.Preset {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preset
}

func (r *fakeRig) SetPreset(name string) error {
	p, err := r.table.Get(name)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.preset = p
	r.mu.Unlock()
	return nil
}

func (r *fakeRig) Live() bool                    { return r.live }
func (r *fakeRig) SetLive(live bool)             { r.live = live }
func (r *fakeRig) Ticks() uint64                 { return 42 }
func (r *fakeRig) Strategy() kinematics.Strategy { return kinematics.StrategyClosedForm }
func (r *fakeRig) TickRate() float64             { return 60 }

type fixture struct {
	srv   *Server
	rig   *fakeRig
	box   *telemetry.Mailbox
	takes *recorder.Recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	table := preset.NewTable()
	rig := newFakeRig(table)
	box := &telemetry.Mailbox{}

	rec, err := recorder.Open(recorder.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rec.Close() })

	decode := telemetry.DefaultDecodeOptions()
	decode.SpaceScale = 100

	srv, err := NewServer("0", Deps{
		Rig:     rig,
		Presets: table,
		Takes:   rec,
		Samples: box,
		Decode:  decode,
	})
	require.NoError(t, err)
	return fixture{srv: srv, rig: rig, box: box, takes: rec}
}

func (f fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestNewServer_RequiresRig(t *testing.T) {
	_, err := NewServer("0", Deps{})
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, preset.TechnoDolly, status.Preset)
	assert.Equal(t, "closed-form", status.Strategy)
	assert.True(t, status.Live)
	assert.Equal(t, uint64(42), status.Ticks)
	assert.Empty(t, status.Recording)
	assert.Nil(t, status.Metrics)
}

func TestPresets(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/presets", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []PresetResponse
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 2)
	assert.Equal(t, preset.TechnoDolly, list[0].Preset.Name)
	assert.True(t, list[0].Active)
	assert.Equal(t, 1, list[1].Index)
	assert.Equal(t, 4, list[1].Preset.BeamCount)
}

func TestSetPreset(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPut, "/api/preset/SuperTechno%2050%20Plus", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, preset.SuperTechno50Plus, f.rig.Preset().Name)

	resp, body := f.do(t, http.MethodPut, "/api/preset/Nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, string(body), "unknown crane model")
}

func TestSetLive(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPut, "/api/live", LiveRequest{Live: false})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, f.rig.Live())
}

func TestPostSample(t *testing.T) {
	f := newFixture(t)

	packet := protocol.PacketData{Position: [3]float64{1, 2, 3}, Pan: 20, TrackPos: 0.5, PacketNumber: 5}
	resp, body := f.do(t, http.MethodPost, "/api/sample", packet)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var data protocol.SampleData
	require.NoError(t, json.Unmarshal(body, &data))
	assert.Equal(t, [3]float64{100, 300, 200}, data.Position)

	s, ok := f.box.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(5), s.PacketNumber)
	assert.InDelta(t, 50.0, s.TrackPosition, 1e-9)
}

func TestPostSample_BadBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/sample", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTakes(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/takes", StartTakeRequest{Name: "crane up"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var take recorder.Take
	require.NoError(t, json.Unmarshal(body, &take))
	assert.Equal(t, "crane up", take.Name)
	assert.Equal(t, preset.TechnoDolly, take.Preset)

	require.NoError(t, f.takes.Record(recorder.Frame{Tick: 1}))
	require.NoError(t, f.takes.Record(recorder.Frame{Tick: 2}))

	_, body = f.do(t, http.MethodGet, "/api/status", nil)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, take.ID, status.Recording)

	resp, _ = f.do(t, http.MethodDelete, "/api/takes/active", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/api/takes/active", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/api/takes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var takes []recorder.Take
	require.NoError(t, json.Unmarshal(body, &takes))
	require.Len(t, takes, 1)
	assert.Equal(t, 2, takes[0].FrameCount)

	resp, body = f.do(t, http.MethodGet, "/api/takes/"+take.ID+"/frames", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var frames []recorder.Frame
	require.NoError(t, json.Unmarshal(body, &frames))
	assert.Len(t, frames, 2)

	resp, _ = f.do(t, http.MethodGet, "/api/takes/unknown/frames", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/ws/results", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestTelemetryMessage(t *testing.T) {
	f := newFixture(t)

	msg, err := protocol.NewPacketMessage(protocol.PacketData{PacketNumber: 11})
	require.NoError(t, err)
	data, err := msg.Bytes()
	require.NoError(t, err)

	f.srv.onTelemetryMessage([]byte("garbage"))
	f.srv.onTelemetryMessage(data)

	s, ok := f.box.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(11), s.PacketNumber)
}
