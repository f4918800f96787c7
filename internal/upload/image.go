// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	// Register the WebP decoder with the image package.
	_ "golang.org/x/image/webp"
)

// decodeImage fully decodes data, honoring EXIF orientation so the sanitized
// output looks the same as the original. The decode runs in its own goroutine
// so a pathological input cannot stall the pipeline past the caller's
// deadline; on timeout the goroutine's result is discarded.
func decodeImage(ctx context.Context, data []byte) (image.Image, error) {
	type decoded struct {
		img image.Image
		err error
	}

	ch := make(chan decoded, 1)
	go func() {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		ch <- decoded{img: img, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("image decode: %w", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("image decode: %w", res.err)
		}
		return res.img, nil
	}
}

// encodeSanitized re-encodes a decoded image into a fresh, metadata-free
// container. JPEG and WebP inputs become JPEG; PNG and GIF inputs become PNG,
// preserving transparency. Animation is not preserved.
func encodeSanitized(img image.Image, format string, jpegQuality int) ([]byte, error) {
	var out bytes.Buffer
	var err error

	switch format {
	case "jpeg", "webp":
		err = imaging.Encode(&out, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality))
	case "png", "gif":
		err = imaging.Encode(&out, img, imaging.PNG)
	default:
		return nil, fmt.Errorf("no sanitized encoding for format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode sanitized image: %w", err)
	}

	return out.Bytes(), nil
}
