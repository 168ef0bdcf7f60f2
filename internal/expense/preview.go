package expense

import (
	"bytes"
	"fmt"
	"time"

	"github.com/disintegration/imaging"
	"github.com/patrickmn/go-cache"
)

const (
	previewTTL          = 10 * time.Minute
	defaultPreviewWidth = 800
	maxPreviewWidth     = 2000
)

type preview struct {
	data        []byte
	contentType string
}

// PreviewBillFile returns the receipt of a bill scaled down to width pixels
// for the preview modal. Receipts narrower than width are returned as-is.
func (s *Service) PreviewBillFile(id string, width int) ([]byte, string, error) {
	if width <= 0 {
		width = defaultPreviewWidth
	}
	width = min(width, maxPreviewWidth)

	key := fmt.Sprintf("%s:%d", id, width)
	if cached, ok := s.previews.Get(key); ok {
		p := cached.(preview)
		return p.data, p.contentType, nil
	}

	data, contentType, err := s.GetBillFile(id)
	if err != nil {
		return nil, "", err
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decoding receipt: %w", err)
	}

	p := preview{data: data, contentType: contentType}
	if img.Bounds().Dx() > width {
		format := imaging.JPEG
		if contentType == "image/png" {
			format = imaging.PNG
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, imaging.Resize(img, width, 0, imaging.Lanczos), format); err != nil {
			return nil, "", fmt.Errorf("encoding preview: %w", err)
		}
		p.data = buf.Bytes()
	}

	s.previews.Set(key, p, cache.DefaultExpiration)
	return p.data, p.contentType, nil
}
