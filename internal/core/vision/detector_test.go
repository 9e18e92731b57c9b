package vision

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 20, B: 20, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

type mapFetcher struct {
	mu   sync.Mutex
	data map[string][]byte
	seen []string
}

func (f *mapFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, ref)
	b, ok := f.data[ref]
	if !ok {
		return nil, errors.New("404")
	}
	return b, nil
}

// scriptedModel returns detections in call order.
type scriptedModel struct {
	mu     sync.Mutex
	script [][]Detection
	errAt  map[int]bool
	calls  int
}

func (m *scriptedModel) Predict(_ context.Context, jpeg []byte) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	if len(jpeg) < 2 || jpeg[0] != 0xFF || jpeg[1] != 0xD8 {
		return nil, errors.New("not a jpeg")
	}
	if m.errAt[i] {
		return nil, errors.New("inference failed")
	}
	if i < len(m.script) {
		return m.script[i], nil
	}
	return nil, nil
}

type countingSource struct {
	model Model
	err   error
	calls int
}

func (c *countingSource) Model(context.Context) (Model, error) {
	c.calls++
	return c.model, c.err
}

func TestDetect_EmptyListSkipsModel(t *testing.T) {
	src := &countingSource{model: &scriptedModel{}}
	d := NewDetector(&mapFetcher{}, src, nil)

	sum := d.Detect(context.Background(), nil)
	assert.Zero(t, sum.CarDetections)
	assert.Zero(t, sum.BestConf)
	assert.Zero(t, src.calls)
}

func TestDetect_CountsVehiclesAndBestConf(t *testing.T) {
	img := pngFixture(t, 32, 24)
	f := &mapFetcher{data: map[string][]byte{"a.jpg": img, "b.jpg": img, "c.jpg": img}}
	m := &scriptedModel{script: [][]Detection{
		{{Label: "car", Confidence: 0.912345}, {Label: "person", Confidence: 0.99}},
		{{Label: "Motorbike", Confidence: 0.4}, {Label: "truck", Confidence: 0.3}},
		{{Label: "traffic light", Confidence: 0.97}},
	}}
	d := NewDetector(f, StaticModel{M: m}, nil)

	sum := d.Detect(context.Background(), []string{"a.jpg", "b.jpg", "c.jpg"})
	assert.Equal(t, 3, sum.CarDetections)
	assert.Equal(t, 0.9123, sum.BestConf)
}

func TestDetect_OnlyFirstSixImages(t *testing.T) {
	img := pngFixture(t, 8, 8)
	refs := make([]string, 10)
	data := map[string][]byte{}
	for i := range refs {
		refs[i] = string(rune('a'+i)) + ".jpg"
		data[refs[i]] = img
	}
	f := &mapFetcher{data: data}
	script := make([][]Detection, 10)
	for i := range script {
		script[i] = []Detection{{Label: "car", Confidence: 0.5}}
	}
	m := &scriptedModel{script: script}

	sum := NewDetector(f, StaticModel{M: m}, nil).Detect(context.Background(), refs)
	assert.Equal(t, 6, m.calls)
	assert.Equal(t, refs[:6], f.seen)
	assert.Equal(t, 6, sum.CarDetections)
	assert.LessOrEqual(t, sum.CarDetections, 6*len(script[0]))
}

func TestDetect_SkipsBrokenImages(t *testing.T) {
	img := pngFixture(t, 8, 8)
	f := &mapFetcher{data: map[string][]byte{
		"ok.jpg":      img,
		"garbage.jpg": []byte("not an image"),
		"fails.jpg":   img,
	}}
	m := &scriptedModel{
		script: [][]Detection{{{Label: "bus", Confidence: 0.7}}, {{Label: "car", Confidence: 0.99}}},
		errAt:  map[int]bool{1: true},
	}
	d := NewDetector(f, StaticModel{M: m}, nil)

	sum := d.Detect(context.Background(), []string{"ok.jpg", "missing.jpg", "garbage.jpg", "", "fails.jpg"})
	assert.Equal(t, 1, sum.CarDetections)
	assert.Equal(t, 0.7, sum.BestConf)
}

func TestDetect_ModelUnavailable(t *testing.T) {
	src := &countingSource{err: errors.New("weights missing")}
	d := NewDetector(&mapFetcher{}, src, nil)

	sum := d.Detect(context.Background(), []string{"a.jpg"})
	assert.Zero(t, sum.CarDetections)
	assert.Zero(t, sum.BestConf)

	var nilSource ModelSource
	sum = NewDetector(&mapFetcher{}, nilSource, nil).Detect(context.Background(), []string{"a.jpg"})
	assert.Zero(t, sum.CarDetections)
}

func TestLazyModel_InitOnce(t *testing.T) {
	var builds int
	lazy := NewLazyModel(func(context.Context) (Model, error) {
		builds++
		return &scriptedModel{}, nil
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m, err := lazy.Model(context.Background())
			assert.NoError(t, err)
			assert.NotNil(t, m)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, builds)
}

func TestLazyModel_RecoversAfterTransientFailure(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var builds int
	lazy := NewLazyModel(func(context.Context) (Model, error) {
		builds++
		if builds == 1 {
			return nil, errors.New("detection service not up yet")
		}
		return &scriptedModel{}, nil
	}, nil, WithRetryInterval(10*time.Second))
	lazy.now = func() time.Time { return clock }

	_, err := lazy.Model(context.Background())
	require.Error(t, err)

	// inside the retry interval the failure is returned without a rebuild
	clock = clock.Add(5 * time.Second)
	_, err = lazy.Model(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, builds)

	clock = clock.Add(6 * time.Second)
	m, err := lazy.Model(context.Background())
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, 2, builds)

	// success is kept for the life of the process
	m2, err := lazy.Model(context.Background())
	require.NoError(t, err)
	assert.Same(t, m, m2)
	assert.Equal(t, 2, builds)
}

func TestLazyModel_ZeroIntervalRetriesEveryCall(t *testing.T) {
	var builds int
	lazy := NewLazyModel(func(context.Context) (Model, error) {
		builds++
		if builds < 3 {
			return nil, errors.New("boom")
		}
		return &scriptedModel{}, nil
	}, nil, WithRetryInterval(0))

	for i := 0; i < 2; i++ {
		_, err := lazy.Model(context.Background())
		assert.Error(t, err)
	}
	_, err := lazy.Model(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, builds)
}

func TestDecode_FitsLongSide(t *testing.T) {
	img, err := Decode(pngFixture(t, 400, 100), 200)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())

	img, err = Decode(pngFixture(t, 40, 10), 200)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())

	_, err = Decode(nil, 0)
	assert.Error(t, err)
	_, err = Decode([]byte("nope"), 0)
	assert.Error(t, err)
}
