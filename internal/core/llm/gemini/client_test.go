package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", firstText(nil))
	assert.Equal(t, "", firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text(`{"real_probability":`), genai.Text(`0.6}`)}}},
	}}
	assert.Equal(t, `{"real_probability":0.6}`, firstText(resp))
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{APIKey: "  "}, nil)
	assert.Error(t, err)

	c, err := NewClient(Config{APIKey: "key"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "gemini:gemini-1.5-flash", c.Name())
	assert.NoError(t, c.Close())
}
