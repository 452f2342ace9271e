package studio

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/validate"
	"pixelweave-server/modules/generation"
)

// Section - 자유 형식 key/value 묶음 (background / model / extra)
// 알 수 없는 key 도 그대로 프롬프트에 전달됨
type Section map[string]string

// Params - studio 생성 파라미터 (multipart "parameters" JSON)
//
// 최상위 key 는 고정, 각 섹션 안의 key 는 자유 형식.
// 예: {"model":{"gender":"female","accessories":"watch"},"extra":{"props":"sunglasses"}}
type Params struct {
	GarmentType string  `json:"garment_type,omitempty" validate:"max=100"`
	ImageSize   string  `json:"image_size,omitempty" validate:"max=20"`
	Background  Section `json:"background,omitempty" validate:"max=20,dive,keys,min=1,max=50,endkeys,max=200"`
	Model       Section `json:"model,omitempty" validate:"max=20,dive,keys,min=1,max=50,endkeys,max=200"`
	Extra       Section `json:"extra,omitempty" validate:"max=20,dive,keys,min=1,max=50,endkeys,max=200"`
}

// ParseParams - JSON 해석 + 검증 후 프롬프트용 map 으로 변환 (빈 값 제거)
func ParseParams(raw string) (map[string]any, error) {
	var p Params
	if raw != "" {
		if err := decodeStrict(raw, &p); err != nil {
			return nil, err
		}
	}
	if err := validate.Struct(p); err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(p)
	if err != nil {
		return nil, apperr.Validation("parameters", "must be a JSON object")
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, apperr.Validation("parameters", "must be a JSON object")
	}
	cleaned, _ := generation.CleanParams(out).(map[string]any)
	if cleaned == nil {
		cleaned = map[string]any{}
	}
	return cleaned, nil
}

func decodeStrict(raw string, p *Params) error {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return apperr.Validation("parameters."+typeErr.Field, "must be a string value")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return apperr.Validation("parameters", strings.TrimPrefix(err.Error(), "json: "))
		default:
			return apperr.Validation("parameters", "must be a JSON object")
		}
	}
	if _, err := dec.Token(); err != io.EOF {
		return apperr.Validation("parameters", "must be a single JSON object")
	}
	return nil
}
