// SPDX-License-Identifier: Unlicense OR MIT

package headless

import (
	"testing"

	"scenepack.dev/driver"
)

func TestBufferGrowsOnSubData(t *testing.T) {
	d := New()
	buf, err := d.NewArrayBuffer(driver.TargetArrayBuffer, []byte{1, 2, 3}, driver.UsageStatic)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	buf.SetSubData(5, []byte{9, 9})
	b := buf.(*Buffer)
	if b.Size() != 7 {
		t.Fatalf("expected buffer to grow to 7 bytes, got %d", b.Size())
	}
}

func TestTextureSubImageCounts(t *testing.T) {
	d := New()
	tex, err := d.NewTexture2D(driver.TextureOptions{Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx := tex.(*Texture)
	for i := 0; i < 3; i++ {
		tx.SetSubImage2D(0, 0, 0, 1, 1, []byte{1, 2, 3, 4})
	}
	if tx.Uploads() != 3 {
		t.Fatalf("expected 3 uploads, got %d", tx.Uploads())
	}
}

func TestDeviceRelease(t *testing.T) {
	d := New()
	d.Release()
	if !d.Released() {
		t.Fatalf("expected device to be released")
	}
}
