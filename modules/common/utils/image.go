package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // JPEG 디코더 등록
	_ "image/png"  // PNG 디코더 등록

	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	log "github.com/sirupsen/logrus"
)

// ConvertToWebP - PNG/JPEG/WebP 바이너리를 lossy WebP 로 변환
func ConvertToWebP(data []byte, quality float32) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	log.Debugf("🔄 Converting %s to WebP (quality: %.1f)", format, quality)

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, quality)
	if err != nil {
		return nil, fmt.Errorf("failed to create WebP encoder options: %w", err)
	}

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, options); err != nil {
		return nil, fmt.Errorf("failed to encode WebP: %w", err)
	}

	out := buf.Bytes()
	log.Printf("✅ %s converted to WebP: %d bytes → %d bytes (%.1f%% reduction)",
		format, len(data), len(out),
		float64(len(data)-len(out))/float64(len(data))*100)
	return out, nil
}

// WebPConverter - quality 를 고정한 변환 함수 (worker 에 주입)
func WebPConverter(quality float32) func([]byte) ([]byte, error) {
	return func(data []byte) ([]byte, error) {
		return ConvertToWebP(data, quality)
	}
}
