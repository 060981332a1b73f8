// SPDX-License-Identifier: Unlicense OR MIT

// Package headless is a dependency-free, in-memory implementation of
// package driver, grounded on gioui's own gpu/headless package: a
// Device with no real GPU behind it, used for tests and for hosts
// that want to verify the authoring pipeline without a graphics
// context.
package headless

import (
	"fmt"

	"scenepack.dev/driver"
)

// Device is a headless driver.Device: every resource it creates lives
// entirely in process memory and records what was uploaded for test
// assertions.
type Device struct {
	released bool
}

// New creates a headless device.
func New() *Device {
	return &Device{}
}

func (d *Device) NewArrayBuffer(target driver.BufferTarget, data []byte, usage driver.BufferUsage) (driver.Buffer, error) {
	buf := &Buffer{target: target, usage: usage}
	buf.data = append(buf.data, data...)
	return buf, nil
}

func (d *Device) NewTexture2D(opts driver.TextureOptions) (driver.Texture, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("headless: invalid texture dimensions %dx%d", opts.Width, opts.Height)
	}
	tex := &Texture{opts: opts, pixels: make([]byte, opts.Width*opts.Height*4)}
	if opts.PreloadColor != nil {
		for i := 0; i < opts.Width*opts.Height; i++ {
			copy(tex.pixels[i*4:i*4+4], opts.PreloadColor[:])
		}
	}
	return tex, nil
}

func (d *Device) NewProgram(vertexSrc, fragmentSrc string) (driver.Program, error) {
	if vertexSrc == "" || fragmentSrc == "" {
		return &Program{errs: []string{"headless: empty shader source"}}, nil
	}
	return &Program{}, nil
}

func (d *Device) Release() {
	d.released = true
}

// Released reports whether Release has been called, for tests.
func (d *Device) Released() bool { return d.released }

// Buffer is the headless driver.Buffer.
type Buffer struct {
	target    driver.BufferTarget
	usage     driver.BufferUsage
	data      []byte
	destroyed bool
}

func (b *Buffer) SetSubData(offset int, data []byte) {
	need := offset + len(data)
	if need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[offset:], data)
}

func (b *Buffer) Size() int { return len(b.data) }

func (b *Buffer) Destroy() { b.destroyed = true }

// Data returns the buffer's current contents, for test assertions.
func (b *Buffer) Data() []byte { return b.data }

// Destroyed reports whether Destroy has been called.
func (b *Buffer) Destroyed() bool { return b.destroyed }

// Texture is the headless driver.Texture.
type Texture struct {
	opts      driver.TextureOptions
	pixels    []byte
	uploads   int
	destroyed bool
}

func (t *Texture) SetImage(pixels []byte, stride int) {
	copy(t.pixels, pixels)
	t.uploads++
}

func (t *Texture) SetCompressedData(mipmaps [][]byte, width, height int) {
	t.uploads++
}

func (t *Texture) SetSubImage2D(level, x, y, w, h int, pixels []byte) {
	stride := t.opts.Width * 4
	for row := 0; row < h; row++ {
		srcOff := row * w * 4
		dstOff := (y+row)*stride + x*4
		if dstOff+w*4 > len(t.pixels) || srcOff+w*4 > len(pixels) {
			continue
		}
		copy(t.pixels[dstOff:dstOff+w*4], pixels[srcOff:srcOff+w*4])
	}
	t.uploads++
}

func (t *Texture) Destroy() { t.destroyed = true }

// Uploads returns the number of SetImage/SetSubImage2D/
// SetCompressedData calls made so far, used by tests to assert the
// deferred-update coalescing invariant.
func (t *Texture) Uploads() int { return t.uploads }

// Pixels returns the texture's current backing store.
func (t *Texture) Pixels() []byte { return t.pixels }

// Program is the headless driver.Program.
type Program struct {
	errs    []string
	bound   bool
	destroyed bool
}

func (p *Program) Errors() []string { return p.errs }
func (p *Program) Bind()            { p.bound = true }
func (p *Program) Destroy()         { p.destroyed = true }
