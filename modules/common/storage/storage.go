package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"pixelweave-server/modules/common/config"
)

var ErrObjectNotFound = errors.New("object not found")

// Storage - blob 저장소 (staging 입력 / 생성 결과)
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// New - 설정에 맞는 Storage 구현 생성
func New(cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "local":
		return NewLocal(cfg.MediaRoot, cfg.MediaBaseURL)
	case "supabase":
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, cfg.SupabaseStorageBaseURL)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}

// StagingKey - 업로드 원본 임시 경로
func StagingKey(userID, fileName string) string {
	return fmt.Sprintf("staging/user-%s/%s_%s", userID, uuid.NewString(), sanitizeName(fileName))
}

// ResultKey - 생성 결과 경로 (kind 별 디렉터리)
func ResultKey(kind, userID, ext string) string {
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	return fmt.Sprintf("generated-images/%s/user-%s/generated_%d_%s%s", kind, userID, timestamp, uuid.NewString()[:8], ext)
}

func sanitizeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
