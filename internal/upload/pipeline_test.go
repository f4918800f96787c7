// Gatekeeper - Upload Threat Detection and Abuse Mitigation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/gatekeeper

package upload

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/tomtom215/gatekeeper/internal/config"
	"github.com/tomtom215/gatekeeper/internal/events"
	"github.com/tomtom215/gatekeeper/internal/risk"
	"github.com/tomtom215/gatekeeper/internal/threatscan"
)

// fakeEmitter captures submitted events for assertion.
type fakeEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (f *fakeEmitter) Submit(ev events.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeEmitter) last() events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[len(f.events)-1]
}

func newTestPipeline(policy config.UploadPolicy) (*Pipeline, *fakeEmitter) {
	emitter := &fakeEmitter{}
	scanner := threatscan.NewScanner(config.Default().Scanner)
	return NewPipeline(policy, scanner, emitter), emitter
}

// noisePNG encodes a pseudo-random image so the PNG stream is roughly
// incompressible and the decompression-bomb ratio stays near one.
func noisePNG(t *testing.T, width, height int) []byte {
	t.Helper()

	rng := rand.New(rand.NewPCG(42, 99))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: byte(rng.UintN(256)),
				G: byte(rng.UintN(256)),
				B: byte(rng.UintN(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func smallGIF(t *testing.T) []byte {
	t.Helper()

	img := image.NewPaletted(image.Rect(0, 0, 8, 8), []color.Color{
		color.Black, color.White,
	})
	var buf bytes.Buffer
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

// insertPNGText splices a tEXt chunk ahead of IEND.
func insertPNGText(t *testing.T, data []byte, keyword, text string) []byte {
	t.Helper()

	payload := append([]byte(keyword), 0)
	payload = append(payload, []byte(text)...)

	var chunk bytes.Buffer
	var u32 [4]byte
	binary.BigEndian.PutUint32(u32[:], uint32(len(payload)))
	chunk.Write(u32[:])
	chunk.WriteString("tEXt")
	chunk.Write(payload)
	binary.BigEndian.PutUint32(u32[:], crc32.ChecksumIEEE(append([]byte("tEXt"), payload...)))
	chunk.Write(u32[:])

	idx := bytes.Index(data, []byte("IEND"))
	if idx < 4 {
		t.Fatal("no IEND chunk in encoded png")
	}
	pos := idx - 4 // start of the IEND length field

	out := append([]byte{}, data[:pos]...)
	out = append(out, chunk.Bytes()...)
	out = append(out, data[pos:]...)
	return out
}

func fileFor(name, mime string, data []byte) File {
	return File{Name: name, DeclaredMIME: mime, Size: int64(len(data)), Bytes: data}
}

func testContext() Context {
	return Context{CallerID: "u1", IP: "203.0.113.9", UserAgent: "test-agent"}
}

func TestValidateAcceptsCleanPNG(t *testing.T) {
	p, emitter := newTestPipeline(config.Default().Upload)

	data := noisePNG(t, 800, 600)
	v := p.Validate(context.Background(), fileFor("avatar.png", "image/png", data), testContext())

	if !v.Accepted {
		t.Fatalf("rejected: %s (%s)", v.Rejection, v.Message)
	}
	if len(v.SanitizedBytes) == 0 {
		t.Fatal("accepted upload must carry sanitized bytes")
	}
	if bytes.Equal(v.SanitizedBytes, data) {
		t.Error("sanitized output must be a re-encode, not the original bytes")
	}

	// The re-encode stays a decodable PNG with the original geometry.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(v.SanitizedBytes))
	if err != nil {
		t.Fatalf("decode sanitized output: %v", err)
	}
	if format != "png" {
		t.Errorf("sanitized format = %q, want png", format)
	}
	if cfg.Width != 800 || cfg.Height != 600 {
		t.Errorf("sanitized dimensions = %dx%d, want 800x600", cfg.Width, cfg.Height)
	}

	if emitter.count() != 1 {
		t.Fatalf("emitted %d events, want exactly 1", emitter.count())
	}
	if ev := emitter.last(); ev.Kind != events.KindUploadAccepted || ev.Severity != risk.Low {
		t.Errorf("event = %s/%v, want %s/%v", ev.Kind, ev.Severity, events.KindUploadAccepted, risk.Low)
	}
}

func TestValidateRejectsEmptyUpload(t *testing.T) {
	p, emitter := newTestPipeline(config.Default().Upload)

	v := p.Validate(context.Background(), fileFor("x", "image/png", nil), testContext())
	if v.Accepted || v.Rejection != RejectionInvalidInput {
		t.Fatalf("verdict = %+v, want invalid_input rejection", v)
	}
	if emitter.count() != 1 {
		t.Errorf("emitted %d events, want 1", emitter.count())
	}
}

func TestValidateRejectsOversizedUpload(t *testing.T) {
	policy := config.Default().Upload
	policy.MaxUploadBytes = 1024
	p, emitter := newTestPipeline(policy)

	v := p.Validate(context.Background(), fileFor("big", "image/png", make([]byte, 2048)), testContext())
	if v.Accepted || v.Rejection != RejectionSizeExceeded {
		t.Fatalf("verdict = %+v, want size_exceeded rejection", v)
	}
	if ev := emitter.last(); ev.Kind != events.KindUploadRejected {
		t.Errorf("event kind = %s, want %s", ev.Kind, events.KindUploadRejected)
	}
}

func TestValidateRejectsScriptPolyglot(t *testing.T) {
	p, emitter := newTestPipeline(config.Default().Upload)

	data := append(smallGIF(t), []byte("<script>document.location='//evil'</script>")...)
	v := p.Validate(context.Background(), fileFor("img.gif", "image/gif", data), testContext())

	if v.Accepted || v.Rejection != RejectionContentThreat {
		t.Fatalf("verdict = %+v, want content_threat_detected rejection", v)
	}
	if ev := emitter.last(); ev.Severity != risk.Critical {
		t.Errorf("event severity = %v, want %v", ev.Severity, risk.Critical)
	}
}

func TestValidateRejectsMetadataSSRF(t *testing.T) {
	p, emitter := newTestPipeline(config.Default().Upload)

	data := insertPNGText(t, noisePNG(t, 64, 64), "Comment",
		"see http://169.254.169.254/latest/meta-data/iam/")
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if v.Accepted || v.Rejection != RejectionSSRFVector {
		t.Fatalf("verdict = %+v, want ssrf_vector_detected rejection", v)
	}
	if ev := emitter.last(); ev.Severity != risk.Critical {
		t.Errorf("event severity = %v, want %v", ev.Severity, risk.Critical)
	}
}

func TestValidateRejectsInternalHostnameSSRF(t *testing.T) {
	p, _ := newTestPipeline(config.Default().Upload)

	data := insertPNGText(t, noisePNG(t, 64, 64), "Source",
		"fetched from http://build.internal/secrets")
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if v.Accepted || v.Rejection != RejectionSSRFVector {
		t.Fatalf("verdict = %+v, want ssrf_vector_detected rejection", v)
	}
}

func TestValidateAllowsPublicURLInMetadata(t *testing.T) {
	p, _ := newTestPipeline(config.Default().Upload)

	data := insertPNGText(t, noisePNG(t, 64, 64), "Source",
		"camera profile at https://example.com/profiles/x100")
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if !v.Accepted {
		t.Fatalf("rejected: %s (%s)", v.Rejection, v.Message)
	}
}

func TestValidateRejectsSpoofedType(t *testing.T) {
	p, _ := newTestPipeline(config.Default().Upload)

	data := []byte("just some plain text pretending to be an image, long enough to scan")
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if v.Accepted || v.Rejection != RejectionSpoofedType {
		t.Fatalf("verdict = %+v, want unsupported_or_spoofed_type rejection", v)
	}
}

func TestValidateRejectsExcessiveDimensions(t *testing.T) {
	policy := config.Default().Upload
	policy.MaxDimensionPx = 64
	p, _ := newTestPipeline(policy)

	data := noisePNG(t, 128, 48)
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if v.Accepted || v.Rejection != RejectionDimensionExceeded {
		t.Fatalf("verdict = %+v, want dimension_exceeded rejection", v)
	}
}

func TestValidateRejectsDecompressionBomb(t *testing.T) {
	policy := config.Default().Upload
	policy.MaxPixelRatio = 1
	p, _ := newTestPipeline(policy)

	// A uniform image compresses far below width*height*3.
	img := image.NewRGBA(image.Rect(0, 0, 512, 512))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	v := p.Validate(context.Background(), fileFor("img.png", "image/png", buf.Bytes()), testContext())
	if v.Accepted || v.Rejection != RejectionDecompressionBomb {
		t.Fatalf("verdict = %+v, want decompression_bomb_suspected rejection", v)
	}
}

func TestValidateRejectsMetadataOverflow(t *testing.T) {
	policy := config.Default().Upload
	policy.MaxMetadataFields = 3
	p, _ := newTestPipeline(policy)

	data := noisePNG(t, 64, 64)
	for i := 0; i < 4; i++ {
		data = insertPNGText(t, data, "Comment", "benign note")
	}

	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())
	if v.Accepted || v.Rejection != RejectionSuspiciousMetadata {
		t.Fatalf("verdict = %+v, want suspicious_metadata rejection", v)
	}
}

func TestValidateRejectsScriptedMetadata(t *testing.T) {
	p, _ := newTestPipeline(config.Default().Upload)

	// Script content hiding in metadata only; the image body is clean and
	// the region is too small to dominate the full-buffer scan.
	data := insertPNGText(t, noisePNG(t, 64, 64), "Description",
		"x onerror=fetch('//collect')")
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if v.Accepted {
		t.Fatal("scripted metadata must be rejected")
	}
	if v.Rejection != RejectionSuspiciousMetadata && v.Rejection != RejectionContentThreat {
		t.Fatalf("rejection = %s, want a metadata or content-threat rejection", v.Rejection)
	}
}

func TestValidateRejectsCorruptImage(t *testing.T) {
	p, _ := newTestPipeline(config.Default().Upload)

	data := noisePNG(t, 16, 16)[:60] // header survives, pixel data does not
	v := p.Validate(context.Background(), fileFor("img.png", "image/png", data), testContext())

	if v.Accepted || v.Rejection != RejectionInternalError {
		t.Fatalf("verdict = %+v, want internal_error rejection", v)
	}
}

func TestValidateSanitizesWebPToJPEG(t *testing.T) {
	// Encoding WebP is out of scope for the stdlib and x/image, so exercise
	// the format routing directly.
	out, err := encodeSanitized(image.NewRGBA(image.Rect(0, 0, 4, 4)), "webp", 85)
	if err != nil {
		t.Fatalf("encodeSanitized webp: %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(out)); err != nil || format != "jpeg" {
		t.Errorf("webp input re-encodes to %q (err %v), want jpeg", format, err)
	}
}

// failingRemover always fails, standing in for a broken blob store.
type failingRemover struct{}

func (failingRemover) Remove(ctx context.Context, ref string) error {
	return errors.New("blob store unavailable")
}

func TestCleanupPreviousFailureOnlyReports(t *testing.T) {
	emitter := &fakeEmitter{}
	scanner := threatscan.NewScanner(config.Default().Scanner)
	p := NewPipeline(config.Default().Upload, scanner, emitter, WithArtifactRemover(failingRemover{}))

	p.CleanupPrevious(context.Background(), "avatars/u1/old.png", testContext())

	if emitter.count() != 1 {
		t.Fatalf("emitted %d events, want 1", emitter.count())
	}
	if ev := emitter.last(); ev.Kind != events.KindArtifactCleanup {
		t.Errorf("event kind = %s, want %s", ev.Kind, events.KindArtifactCleanup)
	}
}

func TestCleanupPreviousWithoutRemoverIsNoop(t *testing.T) {
	p, emitter := newTestPipeline(config.Default().Upload)
	p.CleanupPrevious(context.Background(), "ref", testContext())
	if emitter.count() != 0 {
		t.Errorf("emitted %d events, want 0", emitter.count())
	}
}
