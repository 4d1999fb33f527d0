package thumbnail

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// decode parses an uploaded image and reports the format to encode
// renditions in
func decode(data []byte) (image.Image, imaging.Format, error) {
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read image header: %w", err)
	}
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		format = imaging.JPEG
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// render resizes img to width, keeping the aspect ratio
func render(img image.Image, width int, format imaging.Format) ([]byte, error) {
	dst := imaging.Resize(img, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dst, format); err != nil {
		return nil, fmt.Errorf("failed to encode %d px rendition: %w", width, err)
	}
	return buf.Bytes(), nil
}
