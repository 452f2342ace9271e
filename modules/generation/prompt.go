package generation

import (
	"encoding/json"
	"strings"

	"pixelweave-server/modules/common/model"
)

const defaultBackground = "white"

const studioInstruction = "Create a professional fashion model photoshoot using the garment from the reference image and given parameters."

const wardrobeTemplate = `A professional studio fashion photoshoot of a clothing garment.

The garment is displayed naturally as in a real fashion shoot, with correct proportions,
realistic fabric drape, natural wrinkles, and visible stitching details.

Background:
- Solid {{bg_color}} background
- Clean studio setup with subtle shadow falloff

Style:
- E-commerce fashion photography
- No mannequins visible
- No human body parts
- No AI artifacts or distortions

The final image should look like it was captured during a professional clothing brand photoshoot.`

// BuildWardrobePrompt - 배경색만 치환하는 고정 템플릿
func BuildWardrobePrompt(bgColor string) string {
	bgColor = strings.TrimSpace(bgColor)
	if bgColor == "" {
		bgColor = defaultBackground
	}
	return strings.Replace(wardrobeTemplate, "{{bg_color}}", bgColor, 1)
}

// BuildStudioPrompt - 고정 안내문 + 정리된 파라미터 JSON (2칸 들여쓰기, 키 정렬)
func BuildStudioPrompt(params map[string]any) string {
	cleaned, _ := CleanParams(params).(map[string]any)
	if cleaned == nil {
		cleaned = map[string]any{}
	}
	body, err := json.MarshalIndent(cleaned, "", "  ")
	if err != nil {
		body = []byte("{}")
	}
	return studioInstruction + "\n\nParameters:\n" + string(body)
}

// CleanParams - nil, 빈 문자열, 0, false, 빈 리스트/맵 재귀 제거
// 정리 후 비게 된 맵도 제거 대상
func CleanParams(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			if c := CleanParams(child); !isEmpty(c) {
				out[k] = c
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, child := range t {
			if c := CleanParams(child); !isEmpty(c) {
				out = append(out, c)
			}
		}
		return out
	default:
		return v
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case float32:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case json.Number:
		return t == "0" || t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}

// PromptFor - job kind 별 프롬프트
func PromptFor(kind string, params map[string]any) string {
	if kind == model.KindWardrobe {
		bg, _ := params["bg_color"].(string)
		return BuildWardrobePrompt(bg)
	}
	return BuildStudioPrompt(params)
}
