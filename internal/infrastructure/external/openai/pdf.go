package openai

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
)

// renderPDF converts the first maxPages pages of a PDF to JPEG images
func renderPDF(data []byte, maxPages int) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages > maxPages {
		pages = maxPages
	}

	images := make([][]byte, 0, pages)
	for n := 0; n < pages; n++ {
		img, err := doc.Image(n)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", n, err)
		}
		encoded, err := encodeJPEG(img)
		if err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", n, err)
		}
		images = append(images, encoded)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("PDF has no pages")
	}
	return images, nil
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
