// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// metadataRegion is one extracted metadata block from an image container.
type metadataRegion struct {
	// Source names the container structure the region came from.
	Source string
	// Data is the raw region content.
	Data []byte
}

// extractRegions walks the container structure for the detected format and
// returns its metadata regions plus a field count for the metadata ceiling.
// Unknown formats and truncated structures yield what was parsed so far;
// callers fall back to a bounded prefix scan when nothing is found.
func extractRegions(format string, buf []byte) ([]metadataRegion, int) {
	switch format {
	case "jpeg":
		return jpegRegions(buf)
	case "png":
		return pngRegions(buf)
	case "webp":
		return webpRegions(buf)
	case "gif":
		return gifRegions(buf)
	default:
		return nil, 0
	}
}

// jpegRegions walks JPEG markers and collects APP0-APP15 and COM segments.
// The walk stops at SOS; entropy-coded data is not metadata.
func jpegRegions(buf []byte) ([]metadataRegion, int) {
	if len(buf) < 4 || buf[0] != 0xFF || buf[1] != 0xD8 {
		return nil, 0
	}

	var regions []metadataRegion
	fields := 0
	i := 2
	for i+4 <= len(buf) {
		if buf[i] != 0xFF {
			break
		}
		marker := buf[i+1]

		// Standalone markers carry no length field.
		if marker == 0xD8 || marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		if marker == 0xDA || marker == 0xD9 {
			break
		}

		length := int(buf[i+2])<<8 | int(buf[i+3])
		if length < 2 || i+2+length > len(buf) {
			break
		}
		data := buf[i+4 : i+2+length]

		if (marker >= 0xE0 && marker <= 0xEF) || marker == 0xFE {
			fields++
			regions = append(regions, metadataRegion{
				Source: fmt.Sprintf("jpeg_marker_%02x", marker),
				Data:   data,
			})
			if marker == 0xE1 {
				fields += exifEntryCount(data)
			}
		}

		i += 2 + length
	}
	return regions, fields
}

// exifEntryCount returns the IFD0 entry count of an Exif APP1 payload, or
// zero when the payload is not parseable TIFF.
func exifEntryCount(data []byte) int {
	const exifHeader = "Exif\x00\x00"
	if !bytes.HasPrefix(data, []byte(exifHeader)) {
		return 0
	}
	tiff := data[len(exifHeader):]
	if len(tiff) < 8 {
		return 0
	}

	var order binary.ByteOrder
	switch {
	case tiff[0] == 'I' && tiff[1] == 'I':
		order = binary.LittleEndian
	case tiff[0] == 'M' && tiff[1] == 'M':
		order = binary.BigEndian
	default:
		return 0
	}

	off := int64(order.Uint32(tiff[4:8]))
	if off < 8 || off+2 > int64(len(tiff)) {
		return 0
	}
	return int(order.Uint16(tiff[off : off+2]))
}

var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

// pngRegions walks PNG chunks and collects tEXt, zTXt, iTXt and tIME.
func pngRegions(buf []byte) ([]metadataRegion, int) {
	if !bytes.HasPrefix(buf, pngSignature) {
		return nil, 0
	}

	var regions []metadataRegion
	fields := 0
	i := len(pngSignature)
	for i+8 <= len(buf) {
		length := int(binary.BigEndian.Uint32(buf[i:]))
		chunkType := string(buf[i+4 : i+8])
		end := i + 8 + length
		if length < 0 || end > len(buf) {
			break
		}

		switch chunkType {
		case "tEXt", "zTXt", "iTXt", "tIME":
			fields++
			regions = append(regions, metadataRegion{
				Source: "png_" + chunkType,
				Data:   buf[i+8 : end],
			})
		case "IEND":
			return regions, fields
		}

		i = end + 4 // CRC
	}
	return regions, fields
}

// webpRegions walks RIFF chunks and collects EXIF and XMP payloads.
func webpRegions(buf []byte) ([]metadataRegion, int) {
	if len(buf) < 12 || string(buf[0:4]) != "RIFF" || string(buf[8:12]) != "WEBP" {
		return nil, 0
	}

	var regions []metadataRegion
	fields := 0
	i := 12
	for i+8 <= len(buf) {
		fourCC := string(buf[i : i+4])
		size := int(binary.LittleEndian.Uint32(buf[i+4 : i+8]))
		end := i + 8 + size
		if size < 0 || end > len(buf) {
			break
		}

		switch fourCC {
		case "EXIF":
			fields++
			regions = append(regions, metadataRegion{Source: "webp_exif", Data: buf[i+8 : end]})
		case "XMP ":
			fields++
			regions = append(regions, metadataRegion{Source: "webp_xmp", Data: buf[i+8 : end]})
		}

		// Chunks are word aligned.
		i = end + size%2
	}
	return regions, fields
}

// gifRegions walks GIF blocks and collects comment and application
// extensions. Image data sub-blocks are skipped, not inspected.
func gifRegions(buf []byte) ([]metadataRegion, int) {
	if len(buf) < 13 {
		return nil, 0
	}
	if magic := string(buf[:6]); magic != "GIF87a" && magic != "GIF89a" {
		return nil, 0
	}

	var regions []metadataRegion
	fields := 0
	i := 13
	if buf[10]&0x80 != 0 {
		i += 3 * (2 << (buf[10] & 0x07)) // global color table
	}

	for i < len(buf) {
		switch buf[i] {
		case 0x3B: // trailer
			return regions, fields
		case 0x21: // extension
			if i+2 > len(buf) {
				return regions, fields
			}
			label := buf[i+1]
			data, next, ok := gifSubBlocks(buf, i+2)
			if !ok {
				return regions, fields
			}
			if label == 0xFE || label == 0xFF {
				fields++
				regions = append(regions, metadataRegion{
					Source: fmt.Sprintf("gif_ext_%02x", label),
					Data:   data,
				})
			}
			i = next
		case 0x2C: // image descriptor
			if i+10 > len(buf) {
				return regions, fields
			}
			flags := buf[i+9]
			i += 10
			if flags&0x80 != 0 {
				i += 3 * (2 << (flags & 0x07)) // local color table
			}
			i++ // LZW minimum code size
			if i > len(buf) {
				return regions, fields
			}
			_, next, ok := gifSubBlocks(buf, i)
			if !ok {
				return regions, fields
			}
			i = next
		default:
			return regions, fields
		}
	}
	return regions, fields
}

// gifSubBlocks concatenates a GIF sub-block sequence starting at i and
// returns the data plus the offset past the block terminator.
func gifSubBlocks(buf []byte, i int) ([]byte, int, bool) {
	var data []byte
	for {
		if i >= len(buf) {
			return nil, 0, false
		}
		size := int(buf[i])
		i++
		if size == 0 {
			return data, i, true
		}
		if i+size > len(buf) {
			return nil, 0, false
		}
		data = append(data, buf[i:i+size]...)
		i += size
	}
}
