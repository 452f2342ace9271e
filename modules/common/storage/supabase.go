package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// Supabase - Supabase Storage 버킷 기반 구현
type Supabase struct {
	client  *supabase.Client
	bucket  string
	baseURL string
}

// NewSupabase - Supabase Storage 클라이언트 생성
func NewSupabase(url, serviceKey, bucket, baseURL string) (*Supabase, error) {
	client, err := supabase.NewClient(url, serviceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	log.Printf("✅ Supabase storage ready (bucket: %s)", bucket)
	return &Supabase{client: client, bucket: bucket, baseURL: baseURL}, nil
}

// Put - 업로드 (같은 경로가 있으면 덮어씀)
func (s *Supabase) Put(ctx context.Context, key string, data []byte, contentType string) error {
	log.Printf("📤 Uploading to storage: %s (%d bytes)", key, len(data))

	upsert := true
	_, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.Printf("✅ Uploaded successfully: %s", key)
	return nil
}

// Get - 다운로드
func (s *Supabase) Get(ctx context.Context, key string) ([]byte, error) {
	log.Printf("📥 Downloading from storage: %s", key)

	data, err := s.client.Storage.DownloadFile(s.bucket, key)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "not found") {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return data, nil
}

// Delete - 삭제
func (s *Supabase) Delete(ctx context.Context, key string) error {
	if _, err := s.client.Storage.RemoveFile(s.bucket, []string{key}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	log.Printf("🗑️  Deleted from storage: %s", key)
	return nil
}

// URL - 공개 URL (base URL 이 설정돼 있으면 그대로 이어붙임)
func (s *Supabase) URL(key string) string {
	if s.baseURL != "" {
		return s.baseURL + key
	}
	return s.client.Storage.GetPublicUrl(s.bucket, key).SignedURL
}
