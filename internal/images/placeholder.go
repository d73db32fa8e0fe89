// ABOUTME: Blur-up placeholder generation and image decoding
// ABOUTME: Downscales to a fixed width, blurs, and re-encodes as a low quality JPEG data URI

package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// placeholderSigma approximates a 4px CSS blur at placeholder scale.
const placeholderSigma = 2.0

// decodeImage decodes any registered format, honouring EXIF orientation.
func decodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, errEmptyImage
	}
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}

// Placeholder renders img at width pixels wide (height scaled to keep the
// aspect ratio, at least one pixel), blurs it, and returns a JPEG data URI.
func Placeholder(img image.Image, width, quality int) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("placeholder width must be positive, got %d", width)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return "", errEmptyImage
	}

	small := imaging.Resize(img, width, 0, imaging.Lanczos)
	small = imaging.Blur(small, placeholderSigma)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return "", fmt.Errorf("encoding placeholder: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
