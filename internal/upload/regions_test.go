// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildJPEG assembles SOI plus the given marker segments.
func buildJPEG(segments ...[]byte) []byte {
	out := []byte{0xFF, 0xD8}
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}

// jpegSegment builds one marker segment with a correct length field.
func jpegSegment(marker byte, data []byte) []byte {
	seg := []byte{0xFF, marker}
	length := len(data) + 2
	seg = append(seg, byte(length>>8), byte(length))
	return append(seg, data...)
}

func TestJPEGRegions(t *testing.T) {
	comment := []byte("shot on a potato")
	app1 := []byte("Exif\x00\x00MM\x00\x2a\x00\x00\x00\x08\x00\x02trailing")

	buf := buildJPEG(
		jpegSegment(0xE0, []byte("JFIF\x00")),
		jpegSegment(0xE1, app1),
		jpegSegment(0xFE, comment),
		jpegSegment(0xDB, bytes.Repeat([]byte{0x01}, 64)), // quantization, not metadata
	)

	regions, fields := jpegRegions(buf)
	if len(regions) != 3 {
		t.Fatalf("got %d regions, want 3 (APP0, APP1, COM)", len(regions))
	}
	if !bytes.Equal(regions[2].Data, comment) {
		t.Errorf("COM region = %q, want %q", regions[2].Data, comment)
	}
	// 3 marker segments plus 2 IFD0 entries from the Exif payload.
	if fields != 5 {
		t.Errorf("fields = %d, want 5", fields)
	}
}

func TestJPEGRegionsStopAtSOS(t *testing.T) {
	buf := buildJPEG(
		jpegSegment(0xFE, []byte("before")),
		[]byte{0xFF, 0xDA, 0x00, 0x04, 0x01, 0x02}, // SOS, entropy-coded data follows
	)
	buf = append(buf, []byte("\xFF\xFEnot a real segment")...)

	regions, _ := jpegRegions(buf)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1 (walk must stop at SOS)", len(regions))
	}
}

func TestJPEGRegionsRejectsNonJPEG(t *testing.T) {
	if regions, _ := jpegRegions([]byte("GIF89a")); regions != nil {
		t.Errorf("got %v, want nil for non-JPEG input", regions)
	}
}

func TestPNGRegionsTruncatedChunk(t *testing.T) {
	buf := append([]byte{}, pngSignature...)
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], 1<<30) // length field larger than buffer
	buf = append(buf, u32[:]...)
	buf = append(buf, []byte("tEXt")...)
	buf = append(buf, []byte("short")...)

	regions, fields := pngRegions(buf)
	if len(regions) != 0 || fields != 0 {
		t.Errorf("truncated chunk yielded regions=%v fields=%d, want none", regions, fields)
	}
}

func TestWebPRegions(t *testing.T) {
	exif := []byte("II*\x00exif-payload")
	xmp := []byte("<x:xmpmeta/>")

	var body bytes.Buffer
	writeChunk := func(fourCC string, data []byte) {
		var u32 [4]byte
		body.WriteString(fourCC)
		binary.LittleEndian.PutUint32(u32[:], uint32(len(data)))
		body.Write(u32[:])
		body.Write(data)
		if len(data)%2 == 1 {
			body.WriteByte(0)
		}
	}
	writeChunk("VP8 ", bytes.Repeat([]byte{0x5A}, 10))
	writeChunk("EXIF", exif)
	writeChunk("XMP ", xmp)

	buf := []byte("RIFF")
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(4+body.Len()))
	buf = append(buf, u32[:]...)
	buf = append(buf, []byte("WEBP")...)
	buf = append(buf, body.Bytes()...)

	regions, fields := webpRegions(buf)
	if len(regions) != 2 || fields != 2 {
		t.Fatalf("got %d regions / %d fields, want 2 / 2", len(regions), fields)
	}
	if !bytes.Equal(regions[0].Data, exif) {
		t.Errorf("EXIF region = %q, want %q", regions[0].Data, exif)
	}
	if !bytes.Equal(regions[1].Data, xmp) {
		t.Errorf("XMP region = %q, want %q", regions[1].Data, xmp)
	}
}

func TestGIFRegions(t *testing.T) {
	// Minimal GIF89a: header, logical screen descriptor without a global
	// color table, one comment extension, trailer.
	buf := []byte("GIF89a")
	buf = append(buf, 0x08, 0x00, 0x08, 0x00, 0x00, 0x00, 0x00) // LSD, no GCT
	buf = append(buf, 0x21, 0xFE)                               // comment extension
	buf = append(buf, 0x05)
	buf = append(buf, []byte("hello")...)
	buf = append(buf, 0x00) // sub-block terminator
	buf = append(buf, 0x3B) // trailer

	regions, fields := gifRegions(buf)
	if len(regions) != 1 || fields != 1 {
		t.Fatalf("got %d regions / %d fields, want 1 / 1", len(regions), fields)
	}
	if string(regions[0].Data) != "hello" {
		t.Errorf("comment = %q, want hello", regions[0].Data)
	}
}

func TestGIFSubBlocksSpanningConcatenation(t *testing.T) {
	buf := []byte{0x03, 'a', 'b', 'c', 0x02, 'd', 'e', 0x00, 0xAA}
	data, next, ok := gifSubBlocks(buf, 0)
	if !ok {
		t.Fatal("expected successful walk")
	}
	if string(data) != "abcde" {
		t.Errorf("data = %q, want abcde", data)
	}
	if next != 8 {
		t.Errorf("next = %d, want 8", next)
	}
}

func TestScanRegionForSSRF(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		found bool
	}{
		{"metadata ip", "endpoint HTTP://169.254.169.254/iam", true},
		{"loopback", "see http://127.0.0.1:8080/", true},
		{"private", "cfg at https://10.0.0.5/conf", true},
		{"file scheme", "read file://localhost/etc/passwd", true},
		{"gopher loopback", "gopher://127.0.0.1:6379/_FLUSHALL", true},
		{"internal name", "hit http://db.prod.internal/dump", true},
		{"public ip", "cdn at https://93.184.216.34/a.png", false},
		{"public name", "profile https://example.com/x", false},
		{"no url", "nothing interesting here", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, found := scanRegionForSSRF([]byte(tt.data))
			if found != tt.found {
				t.Errorf("found = %v, want %v", found, tt.found)
			}
		})
	}
}

func TestSuspiciousMetadataContent(t *testing.T) {
	if !suspiciousMetadataContent([]byte(`<SCRIPT>alert(1)</SCRIPT>`)) {
		t.Error("script content not flagged")
	}
	if !suspiciousMetadataContent([]byte(`click javascript:void(0)`)) {
		t.Error("javascript protocol not flagged")
	}
	if suspiciousMetadataContent([]byte("Nikon D850, 35mm f/1.8")) {
		t.Error("benign camera metadata flagged")
	}
}
