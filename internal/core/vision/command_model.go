package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// CommandRunner matches ocr.Runner so the exec runner can be shared.
type CommandRunner interface {
	Run(ctx context.Context, name string, logger *slog.Logger, args ...string) (stdout, stderr []byte, err error)
}

// CommandModel shells out to a local detector:
//
//	<cmd> --weights <path> --source <jpeg>
//
// which prints {"detections":[...]} on stdout.
type CommandModel struct {
	command string
	weights string
	runner  CommandRunner
	logger  *slog.Logger
}

type CommandConfig struct {
	Command    string
	WeightsURL string
	WeightsDir string
	Timeout    time.Duration
}

// NewCommandModel makes sure the weights file exists, downloading it from
// WeightsURL when it does not, and returns a ready model.
func NewCommandModel(ctx context.Context, cfg CommandConfig, runner CommandRunner, logger *slog.Logger) (*CommandModel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("detection command is not configured")
	}
	weights, err := ensureWeights(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &CommandModel{command: cfg.Command, weights: weights, runner: runner, logger: logger}, nil
}

func (m *CommandModel) Predict(ctx context.Context, jpeg []byte) ([]Detection, error) {
	tmp, err := os.CreateTemp("", "lv-vision-*.jpg")
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(jpeg); err != nil {
		_ = tmp.Close()
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	out, errb, err := m.runner.Run(ctx, m.command, m.logger, "--weights", m.weights, "--source", tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", m.command, err, truncate(string(errb), 512))
	}
	var resp predictResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode detector output: %w", err)
	}
	return resp.Detections, nil
}

func weightsPath(cfg CommandConfig) string {
	name := "weights.pt"
	if cfg.WeightsURL != "" {
		if base := path.Base(strings.SplitN(cfg.WeightsURL, "?", 2)[0]); base != "." && base != "/" {
			name = base
		}
	}
	return filepath.Join(cfg.WeightsDir, name)
}

func ensureWeights(ctx context.Context, cfg CommandConfig, logger *slog.Logger) (string, error) {
	dst := weightsPath(cfg)
	if st, err := os.Stat(dst); err == nil && !st.IsDir() && st.Size() > 0 {
		return dst, nil
	}
	if cfg.WeightsURL == "" {
		return "", fmt.Errorf("weights %s missing and VISION_WEIGHTS_URL is not set", dst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}

	start := time.Now()
	logger.Info("vision.weights.download.start", "url", cfg.WeightsURL, "dst", dst)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.WeightsURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download weights: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download weights: status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".weights-*")
	if err != nil {
		return "", err
	}
	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write weights: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	logger.Info("vision.weights.download.done", "bytes", n, "elapsed_ms", time.Since(start).Milliseconds())
	return dst, nil
}
