package vision

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPModel_Predict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, []byte("jpeg"), body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"detections":[{"label":"car","confidence":0.91},{"label":"dog","confidence":0.5}]}`))
	}))
	defer srv.Close()

	m := NewHTTPModel(srv.URL+"/", 0)
	dets, err := m.Predict(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, []Detection{{Label: "car", Confidence: 0.91}, {Label: "dog", Confidence: 0.5}}, dets)
}

func TestHTTPModel_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewHTTPModel(srv.URL, 0)
	require.NoError(t, m.Ping(context.Background()))
	_, err := m.Predict(context.Background(), []byte("jpeg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

type jsonRunner struct {
	out  string
	args []string
}

func (r *jsonRunner) Run(_ context.Context, _ string, _ *slog.Logger, args ...string) ([]byte, []byte, error) {
	r.args = args
	return []byte(r.out), nil, nil
}

func TestCommandModel_DownloadsWeightsOnce(t *testing.T) {
	var downloads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		downloads++
		_, _ = w.Write([]byte("weights-blob"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfg := CommandConfig{Command: "yolo-detect", WeightsURL: srv.URL + "/models/yolov8n.pt?dl=1", WeightsDir: dir}
	runner := &jsonRunner{out: `{"detections":[{"label":"truck","confidence":0.66}]}`}

	m, err := NewCommandModel(context.Background(), cfg, runner, nil)
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "yolov8n.pt"))
	require.NoError(t, err)
	assert.Equal(t, "weights-blob", string(b))

	_, err = NewCommandModel(context.Background(), cfg, runner, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, downloads)

	dets, err := m.Predict(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)
	assert.Equal(t, []Detection{{Label: "truck", Confidence: 0.66}}, dets)
	assert.Equal(t, "--weights", runner.args[0])
	assert.Equal(t, filepath.Join(dir, "yolov8n.pt"), runner.args[1])
	assert.Equal(t, "--source", runner.args[2])
}

func TestCommandModel_MissingWeights(t *testing.T) {
	_, err := NewCommandModel(context.Background(), CommandConfig{Command: "yolo-detect", WeightsDir: t.TempDir()}, &jsonRunner{}, nil)
	assert.Error(t, err)

	_, err = NewCommandModel(context.Background(), CommandConfig{}, &jsonRunner{}, nil)
	assert.Error(t, err)
}
