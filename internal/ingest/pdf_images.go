package ingest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func (e *PDFExtractor) ExtractImages(ctx context.Context, data []byte) ([]PageImage, error) {
	pageImages, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("extract images: %w", err)
	}

	var out []PageImage
	for _, byObject := range pageImages {
		for _, img := range byObject {
			raw, err := io.ReadAll(img)
			if err != nil {
				slog.WarnContext(ctx, "unreadable embedded image", "page", img.PageNr, "name", img.Name, "error", err)
				continue
			}
			out = append(out, PageImage{
				PageNumber: img.PageNr,
				Data:       raw,
				Format:     normalizeImageFormat(img.FileType),
			})
		}
	}
	return out, nil
}

func normalizeImageFormat(fileType string) string {
	switch fileType {
	case "jpg", "jpeg":
		return "jpeg"
	default:
		return fileType
	}
}

// imageDimensions decodes just the header. Unknown encodings report 0x0.
func imageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}
