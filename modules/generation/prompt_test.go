package generation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixelweave-server/modules/common/model"
)

func studioParams() map[string]any {
	return map[string]any{
		"garment_type": "t-shirt",
		"image_size":   "1080x566",
		"background": map[string]any{
			"location": "street",
			"lighting": "",
		},
		"model": map[string]any{
			"gender":     "male",
			"age_group":  "10-20",
			"hair_color": nil,
			"pose":       "casual standing pose with hands in pockets",
		},
		"extra": map[string]any{
			"camera_angle": "",
			"style":        nil,
		},
	}
}

func TestBuildStudioPromptIsDeterministic(t *testing.T) {
	first := BuildStudioPrompt(studioParams())
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, BuildStudioPrompt(studioParams()))
	}
}

func TestBuildStudioPromptDropsEmptyFields(t *testing.T) {
	prompt := BuildStudioPrompt(studioParams())

	require.True(t, strings.HasPrefix(prompt, studioInstruction+"\n\nParameters:\n"))
	assert.NotContains(t, prompt, "lighting")
	assert.NotContains(t, prompt, "hair_color")
	assert.NotContains(t, prompt, "extra")

	var decoded map[string]any
	body := strings.TrimPrefix(prompt, studioInstruction+"\n\nParameters:\n")
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	assert.Equal(t, map[string]any{"location": "street"}, decoded["background"])
}

func TestBuildStudioPromptFormatting(t *testing.T) {
	prompt := BuildStudioPrompt(map[string]any{
		"image_size":   "1024x1024",
		"garment_type": "dress",
	})

	want := studioInstruction + "\n\nParameters:\n" +
		"{\n  \"garment_type\": \"dress\",\n  \"image_size\": \"1024x1024\"\n}"
	assert.Equal(t, want, prompt)
}

func TestBuildStudioPromptEmpty(t *testing.T) {
	assert.Equal(t, studioInstruction+"\n\nParameters:\n{}", BuildStudioPrompt(nil))
}

func TestCleanParams(t *testing.T) {
	in := map[string]any{
		"zero":   float64(0),
		"false":  false,
		"list":   []any{},
		"keep":   []any{"a", "", nil},
		"number": float64(3),
		"nested": map[string]any{"deep": map[string]any{"x": ""}},
	}

	assert.Equal(t, map[string]any{
		"keep":   []any{"a"},
		"number": float64(3),
	}, CleanParams(in))
}

func TestBuildWardrobePrompt(t *testing.T) {
	prompt := BuildWardrobePrompt("beige")
	assert.Contains(t, prompt, "- Solid beige background")
	assert.Equal(t, prompt, BuildWardrobePrompt("beige"))

	assert.Contains(t, BuildWardrobePrompt(""), "- Solid white background")
	assert.Equal(t, BuildWardrobePrompt("white"), PromptFor(model.KindWardrobe, map[string]any{}))
}
