package vertexai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"cloud.google.com/go/auth/credentials"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// NewClient - Vertex AI 백엔드 genai 클라이언트 생성
// 자격 증명 우선순위: credsJSON → credsPath → Application Default Credentials
func NewClient(ctx context.Context, project, location, credsJSON, credsPath string) (*genai.Client, error) {
	cc := &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}

	credsData, err := loadCredentials(credsJSON, credsPath)
	if err != nil {
		return nil, err
	}
	if credsData != nil {
		creds, err := credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          []string{cloudPlatformScope},
			CredentialsJSON: credsData,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load Vertex AI credentials: %w", err)
		}
		cc.Credentials = creds
	} else {
		log.Println("⚠️  [VertexAI] No explicit credentials found, using Application Default Credentials")
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	log.Printf("✅ [VertexAI] Client initialized for project=%s, location=%s", project, location)
	return client, nil
}

func loadCredentials(credsJSON, credsPath string) ([]byte, error) {
	if credsJSON != "" {
		log.Println("✅ [VertexAI] Using VERTEXAI_CREDENTIALS_JSON from environment")
		return validJSON([]byte(credsJSON))
	}
	if credsPath != "" {
		log.Printf("✅ [VertexAI] Using credentials from file: %s", credsPath)
		data, err := os.ReadFile(credsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return validJSON(data)
	}
	return nil, nil
}

func validJSON(data []byte) ([]byte, error) {
	var creds map[string]any
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("invalid JSON credentials: %w", err)
	}
	return data, nil
}
