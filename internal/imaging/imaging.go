// Package imaging turns uploaded photos into bounded JPEG data URIs that can
// be embedded in a report payload.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height of a normalized image.
const MaxDimension = 1280

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 70

// MaxUploadSize bounds how much input Normalize reads.
const MaxUploadSize = 32 << 20

const dataURIPrefix = "data:image/jpeg;base64,"

// ErrImage is wrapped by every failure to read, decode or encode an image.
var ErrImage = errors.New("image could not be processed")

// Normalize reads an image in any decodable format, applies its EXIF
// orientation, downscales it so neither side exceeds MaxDimension and
// returns it as a base64 JPEG data URI. Smaller images keep their size.
func Normalize(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return "", fmt.Errorf("%w: reading image data: %v", ErrImage, err)
	}
	if len(data) > MaxUploadSize {
		return "", fmt.Errorf("%w: image larger than %d bytes", ErrImage, MaxUploadSize)
	}
	return NormalizeBytes(data)
}

// NormalizeBytes is Normalize for in-memory input.
func NormalizeBytes(data []byte) (string, error) {
	// Sniff the content instead of trusting client headers.
	if !filetype.IsImage(data) {
		kind, _ := filetype.Match(data)
		return "", fmt.Errorf("%w: unsupported content type %q", ErrImage, kind.MIME.Value)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: decoding image: %v", ErrImage, err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return "", fmt.Errorf("%w: encoding JPEG: %v", ErrImage, err)
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURI returns the JPEG bytes of a data URI produced by Normalize.
func DecodeDataURI(uri string) ([]byte, error) {
	if len(uri) < len(dataURIPrefix) || uri[:len(dataURIPrefix)] != dataURIPrefix {
		return nil, fmt.Errorf("%w: not a JPEG data URI", ErrImage)
	}
	data, err := base64.StdEncoding.DecodeString(uri[len(dataURIPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: decoding data URI: %v", ErrImage, err)
	}
	return data, nil
}

// downscale resizes the image so neither dimension exceeds maxDim,
// preserving the aspect ratio with Catmull-Rom interpolation.
// Images already within bounds are returned as is.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
