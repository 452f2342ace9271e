package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const maxRetriesPerKey = 3

// GenerateFunc - 단일 클라이언트 GenerateContent 호출
type GenerateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// KeyPool - API 키별 클라이언트 묶음 (429 시 다음 키로 넘어감)
type KeyPool struct {
	callers  []GenerateFunc
	retryGap time.Duration
}

// NewKeyPool - API 키마다 Gemini 클라이언트 생성
func NewKeyPool(ctx context.Context, apiKeys []string) (*KeyPool, error) {
	if len(apiKeys) == 0 {
		return nil, fmt.Errorf("no API keys provided")
	}

	callers := make([]GenerateFunc, 0, len(apiKeys))
	for i, apiKey := range apiKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for key #%d: %w", i+1, err)
		}
		callers = append(callers, client.Models.GenerateContent)
	}

	log.Printf("✅ [Gemini] %d API key(s) ready", len(callers))
	return NewKeyPoolFromFuncs(callers...), nil
}

// NewKeyPoolFromFuncs - 호출 함수로 직접 구성 (테스트 / 커스텀 백엔드)
func NewKeyPoolFromFuncs(callers ...GenerateFunc) *KeyPool {
	return &KeyPool{callers: callers, retryGap: 2 * time.Second}
}

// WithRetryGap - 429 재시도 대기 시간 변경
func (p *KeyPool) WithRetryGap(d time.Duration) *KeyPool {
	p.retryGap = d
	return p
}

// GenerateContent - 429 에러 시 여러 API 키로 재시도
// 키당 최대 3번, 429 가 아닌 에러는 즉시 반환
func (p *KeyPool) GenerateContent(
	ctx context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for keyIndex, call := range p.callers {
		log.Debugf("🔑 [Gemini Retry] Trying API key #%d/%d", keyIndex+1, len(p.callers))

		for attempt := 1; attempt <= maxRetriesPerKey; attempt++ {
			result, err := call(ctx, model, contents, config)
			if err == nil {
				if keyIndex > 0 || attempt > 1 {
					log.Printf("✅ [Gemini Retry] Success with API key #%d (attempt %d/%d)", keyIndex+1, attempt, maxRetriesPerKey)
				}
				return result, nil
			}
			lastErr = err

			if !IsRateLimited(err) {
				log.Printf("❌ [Gemini Retry] Key #%d failed with non-429 error: %v", keyIndex+1, err)
				return nil, err
			}

			log.Printf("⚠️  [Gemini Retry] Key #%d hit rate limit (429) on attempt %d/%d", keyIndex+1, attempt, maxRetriesPerKey)
			if attempt < maxRetriesPerKey {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(p.retryGap):
				}
			}
		}

		log.Printf("⚠️  [Gemini Retry] Key #%d exhausted all %d attempts, trying next key...", keyIndex+1, maxRetriesPerKey)
	}

	return nil, fmt.Errorf("all %d API keys exhausted (%d attempts each), last error: %w", len(p.callers), maxRetriesPerKey, lastErr)
}

// IsRateLimited - 429 Rate Limit 에러인지 확인
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "quota")
}
