package ocr

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// MinOCRWidth изображения уже этой ширины растягиваются перед распознаванием
const MinOCRWidth = 300

// PrepareImage переводит изображение в оттенки серого, растягивает узкие снимки и кодирует в PNG
func PrepareImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	gray := imaging.Grayscale(img)
	if gray.Bounds().Dx() < MinOCRWidth {
		gray = imaging.Resize(gray, MinOCRWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, gray, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
