package texture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"scenepack.dev/driver"
	"scenepack.dev/driver/headless"
)

func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func waitForPoll(t *testing.T, tex *Texture) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tex.Poll() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for texture load to complete")
}

func TestTextureLoadAsyncSucceeds(t *testing.T) {
	dev := headless.New()
	tex := New("t1", dev, driver.TextureOptions{})
	data := encodeTestPNG(t, 4, 4)
	tex.LoadAsync(data)
	waitForPoll(t, tex)
	if tex.State() != StateReady {
		t.Fatalf("State() = %v, want Ready", tex.State())
	}
	if tex.GPU() == nil {
		t.Fatal("expected a GPU texture after successful load")
	}
}

func TestTextureLoadAsyncEmptySourceFails(t *testing.T) {
	dev := headless.New()
	tex := New("t1", dev, driver.TextureOptions{})
	tex.LoadAsync(nil)
	waitForPoll(t, tex)
	if tex.State() != StateFailed {
		t.Fatalf("State() = %v, want Failed", tex.State())
	}
}

func TestDestroyCancelsInFlightLoad(t *testing.T) {
	dev := headless.New()
	tex := New("t1", dev, driver.TextureOptions{})
	tex.LoadAsync(encodeTestPNG(t, 2, 2))
	tex.Destroy()
	time.Sleep(10 * time.Millisecond)
	if tex.Poll() {
		t.Fatal("Poll should be a no-op after Destroy")
	}
	if tex.GPU() != nil {
		t.Fatal("destroyed texture should not pick up a late GPU resource")
	}
}

func TestRegistryDefaultsAreReadyImmediately(t *testing.T) {
	dev := headless.New()
	r := NewRegistry(dev)
	ts, ok := r.GetSet("__default")
	if !ok {
		t.Fatal("expected a default texture set")
	}
	if ts.AlphaCutoff != DefaultAlphaCutoff {
		t.Fatalf("AlphaCutoff = %v, want %v", ts.AlphaCutoff, DefaultAlphaCutoff)
	}
	colorTex, ok := r.Get(ts.ColorTextureID)
	if !ok || colorTex.State() != StateReady {
		t.Fatalf("default color texture not ready: ok=%v state=%v", ok, colorTex.State())
	}
}

func TestCreateTextureSetResolvesUnknownID(t *testing.T) {
	dev := headless.New()
	r := NewRegistry(dev)
	_, err := r.CreateTextureSet(TextureSet{ID: "ts1", ColorTextureID: "nope"})
	if !errors.Is(err, ErrUnknownTextureID) {
		t.Fatalf("got %v, want ErrUnknownTextureID", err)
	}
}

func TestRegistryLenCountsDefaultsAndCreated(t *testing.T) {
	dev := headless.New()
	r := NewRegistry(dev)
	before := r.Len()
	if _, err := r.CreateTexture("t1", driver.TextureOptions{}, nil); err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	if r.Len() != before+1 {
		t.Fatalf("Len() = %d, want %d", r.Len(), before+1)
	}
}

func TestWaitBlocksUntilEveryTextureInSetDecodes(t *testing.T) {
	dev := headless.New()
	r := NewRegistry(dev)
	colorTex, err := r.CreateTexture("color1", driver.TextureOptions{}, nil)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	colorTex.LoadAsync(encodeTestPNG(t, 2, 2))
	if _, err := r.CreateTextureSet(TextureSet{ID: "ts1", ColorTextureID: "color1"}); err != nil {
		t.Fatalf("CreateTextureSet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Wait(ctx, "ts1"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !colorTex.Poll() {
		t.Fatal("expected Poll to apply the result Wait observed")
	}
	if colorTex.State() != StateReady {
		t.Fatalf("State() = %v, want Ready", colorTex.State())
	}
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	dev := headless.New()
	r := NewRegistry(dev)
	tex, err := r.CreateTexture("slow1", driver.TextureOptions{}, nil)
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	tex.state = StateLoading
	tex.pending = make(chan decodeResult) // never sent to, simulating a load that never completes
	if _, err := r.CreateTextureSet(TextureSet{ID: "ts1", ColorTextureID: "slow1"}); err != nil {
		t.Fatalf("CreateTextureSet: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Wait(ctx, "ts1"); err == nil {
		t.Fatal("expected Wait to return an error once ctx is done")
	}
}

func TestWaitUnknownSetID(t *testing.T) {
	dev := headless.New()
	r := NewRegistry(dev)
	if err := r.Wait(context.Background(), "nope"); !errors.Is(err, ErrUnknownTextureSetID) {
		t.Fatalf("got %v, want ErrUnknownTextureSetID", err)
	}
}
