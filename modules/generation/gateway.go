package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/config"
	"pixelweave-server/modules/common/gemini"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/common/vertexai"
)

// Gateway - 외부 이미지 생성 호출 (동기, 느림)
type Gateway interface {
	Generate(ctx context.Context, kind string, source []byte, params map[string]any) ([]byte, error)
}

// Gemini - genai 기반 Gateway (circuit breaker 포함)
type Gemini struct {
	generate gemini.GenerateFunc
	model    string
	breaker  *gobreaker.CircuitBreaker
}

// NewGemini - 설정에 따라 Vertex AI 또는 API 키 백엔드 선택
func NewGemini(ctx context.Context, cfg *config.Config) (*Gemini, error) {
	if cfg.UseVertexAI() {
		client, err := vertexai.NewClient(ctx, cfg.VertexAIProject, cfg.VertexAILocation,
			cfg.VertexAICredentialsJSON, cfg.VertexAICredentialsPath)
		if err != nil {
			return nil, err
		}
		return NewGeminiWithFunc(client.Models.GenerateContent, cfg.GeminiModel), nil
	}

	pool, err := gemini.NewKeyPool(ctx, cfg.GeminiAPIKeys)
	if err != nil {
		return nil, err
	}
	return NewGeminiWithFunc(pool.GenerateContent, cfg.GeminiModel), nil
}

// NewGeminiWithFunc - 호출 함수 주입 버전
func NewGeminiWithFunc(generate gemini.GenerateFunc, modelName string) *Gemini {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "image-generation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// 응답에 이미지가 없는 경우는 서비스 장애로 보지 않음
			return err == nil || errors.Is(err, errNoImage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("⚡ [Gateway] Circuit %s: %s → %s", name, from, to)
		},
	})
	return &Gemini{generate: generate, model: modelName, breaker: breaker}
}

var errNoImage = errors.New("no image data in response")

// Generate - 프롬프트 + 원본 이미지로 생성 이미지 바이트 반환
func (g *Gemini) Generate(ctx context.Context, kind string, source []byte, params map[string]any) ([]byte, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("%w: empty source image", apperr.ErrGenerationFailed)
	}

	prompt := PromptFor(kind, params)
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(source, DetectMimeType(source)),
		},
	}

	genCfg := &genai.GenerateContentConfig{}
	if kind == model.KindStudio {
		if size, ok := params["image_size"].(string); ok {
			if ratio := AspectRatioFor(size); ratio != "" {
				genCfg.ImageConfig = &genai.ImageConfig{AspectRatio: ratio}
			}
		}
	}

	log.Printf("📤 [Gateway] Sending %s request to %s (%d bytes source)", kind, g.model, len(source))
	started := time.Now()

	out, err := g.breaker.Execute(func() (any, error) {
		result, err := g.generate(ctx, g.model, []*genai.Content{content}, genCfg)
		if err != nil {
			return nil, err
		}
		return extractImage(result)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrGenerationFailed, err)
	}

	image := out.([]byte)
	log.Printf("✅ [Gateway] Received image: %d bytes in %s", len(image), time.Since(started).Round(time.Millisecond))
	return image, nil
}

// extractImage - 첫 번째 InlineData 이미지
func extractImage(result *genai.GenerateContentResponse) ([]byte, error) {
	if result == nil || len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, errNoImage
}

// DetectMimeType - 이미지 바이트의 MIME 타입 (알 수 없으면 image/png)
func DetectMimeType(data []byte) string {
	mime := http.DetectContentType(data)
	if strings.HasPrefix(mime, "image/") {
		return mime
	}
	return "image/png"
}

// ExtensionFor - MIME 타입에 맞는 확장자
func ExtensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

var supportedRatios = []string{"1:1", "2:3", "3:2", "3:4", "4:3", "4:5", "5:4", "9:16", "16:9", "21:9"}

// AspectRatioFor - "1080x566" 같은 크기를 가장 가까운 지원 비율로 변환
func AspectRatioFor(size string) string {
	w, h, ok := parseSize(size)
	if !ok {
		return ""
	}
	target := float64(w) / float64(h)

	best, bestDiff := "", math.MaxFloat64
	for _, ratio := range supportedRatios {
		rw, rh, _ := parseRatio(ratio)
		if diff := math.Abs(math.Log(target) - math.Log(rw/rh)); diff < bestDiff {
			best, bestDiff = ratio, diff
		}
	}
	return best
}

func parseSize(size string) (int, int, bool) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(size)), "x")
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

func parseRatio(ratio string) (float64, float64, bool) {
	parts := strings.Split(ratio, ":")
	w, _ := strconv.ParseFloat(parts[0], 64)
	h, _ := strconv.ParseFloat(parts[1], 64)
	return w, h, true
}
