package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubFetcher struct {
	data map[string][]byte
	err  error
	refs []string
}

func (s *stubFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.refs = append(s.refs, ref)
	if s.err != nil {
		return nil, s.err
	}
	return s.data[ref], nil
}

type stubExtractor struct {
	res   ExtractionResult
	err   error
	isPDF []bool
}

func (s *stubExtractor) ExtractBytes(_ context.Context, _ []byte, isPDF bool) (ExtractionResult, error) {
	s.isPDF = append(s.isPDF, isPDF)
	return s.res, s.err
}

func TestDocumentReader_Read(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts vins", func(t *testing.T) {
		f := &stubFetcher{data: map[string][]byte{"reg.pdf": []byte("%PDF-1.4")}}
		x := &stubExtractor{res: ExtractionResult{Text: "VIN 1hgcm82633a004352 and 1HGCM82633A004352"}}
		doc := NewDocumentReader(f, x, nil).Read(ctx, " reg.pdf ")

		assert.Equal(t, []string{"1HGCM82633A004352"}, doc.VINs)
		assert.Equal(t, []bool{true}, x.isPDF)
		assert.Equal(t, []string{"reg.pdf"}, f.refs)
	})

	t.Run("blank ref skips fetch", func(t *testing.T) {
		f := &stubFetcher{}
		doc := NewDocumentReader(f, &stubExtractor{}, nil).Read(ctx, "  ")
		assert.Empty(t, doc.Text)
		assert.NotNil(t, doc.VINs)
		assert.Empty(t, doc.VINs)
		assert.Empty(t, f.refs)
	})

	t.Run("fetch failure is no signal", func(t *testing.T) {
		f := &stubFetcher{err: errors.New("dial tcp: timeout")}
		doc := NewDocumentReader(f, &stubExtractor{}, nil).Read(ctx, "https://x/reg.jpg")
		assert.Empty(t, doc.Text)
		assert.Empty(t, doc.VINs)
	})

	t.Run("zero bytes is no signal", func(t *testing.T) {
		f := &stubFetcher{data: map[string][]byte{}}
		x := &stubExtractor{}
		doc := NewDocumentReader(f, x, nil).Read(ctx, "reg.jpg")
		assert.Empty(t, doc.VINs)
		assert.Empty(t, x.isPDF, "extractor not called")
	})

	t.Run("ocr failure is no signal", func(t *testing.T) {
		f := &stubFetcher{data: map[string][]byte{"reg.jpg": pngBytes}}
		x := &stubExtractor{err: errors.New("tesseract missing")}
		doc := NewDocumentReader(f, x, nil).Read(ctx, "reg.jpg")
		assert.Empty(t, doc.Text)
		assert.Empty(t, doc.VINs)
		assert.Equal(t, []bool{false}, x.isPDF)
	})
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "data:image/png;base64,...", redact("data:image/png;base64,AAAA"))
	assert.Equal(t, "https://x/a.jpg", redact("https://x/a.jpg"))
}
