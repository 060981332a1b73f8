// SPDX-License-Identifier: Unlicense OR MIT

// Package driver is the minimal GPU abstraction scenepack consumes.
// The real WebGL/GPU implementation behind this interface is an
// external collaborator; this package only names the surface the
// layer family and texture catalog call through, grounded on gioui's
// gpu/internal/driver.Device interface.
package driver

// Device creates and manages the GPU resources a scenepack layer or
// texture needs.
type Device interface {
	NewArrayBuffer(target BufferTarget, data []byte, usage BufferUsage) (Buffer, error)
	NewTexture2D(opts TextureOptions) (Texture, error)
	NewProgram(vertexSrc, fragmentSrc string) (Program, error)
	Release()
}

// Buffer is a GPU array/element buffer.
type Buffer interface {
	SetSubData(offset int, data []byte)
	Size() int
	Destroy()
}

// BufferTarget distinguishes vertex-attribute buffers from index
// buffers.
type BufferTarget uint8

const (
	TargetArrayBuffer BufferTarget = iota
	TargetElementArrayBuffer
)

// BufferUsage is a hint to the underlying GPU API.
type BufferUsage uint8

const (
	UsageStatic BufferUsage = iota
	UsageDynamic
)

// TextureFilter mirrors the WebGL minification/magnification filter
// constants.
type TextureFilter uint8

const (
	FilterLinear TextureFilter = iota
	FilterNearest
	FilterLinearMipmapLinear
	FilterNearestMipmapLinear
	FilterLinearMipmapNearest
	FilterNearestMipmapNearest
)

// TextureWrap mirrors the WebGL wrap-mode constants.
type TextureWrap uint8

const (
	WrapClampToEdge TextureWrap = iota
	WrapMirroredRepeat
	WrapRepeat
)

// TextureEncoding selects linear vs. sRGB sampling.
type TextureEncoding uint8

const (
	EncodingLinear TextureEncoding = iota
	EncodingSRGB
)

// TextureOptions configures a new 2D texture.
type TextureOptions struct {
	Width, Height       int
	MinFilter, MagFilter TextureFilter
	WrapS, WrapT, WrapR TextureWrap
	Encoding            TextureEncoding
	PreloadColor        *[4]uint8 // optional solid fill at creation
}

// Texture is a 2D GPU texture, uploaded to incrementally via
// SetSubImage2D (used heavily by the DTX layer family for per-object
// attribute textures).
type Texture interface {
	SetImage(pixels []byte, stride int)
	SetCompressedData(mipmaps [][]byte, width, height int)
	SetSubImage2D(level, x, y, w, h int, pixels []byte)
	Destroy()
}

// Program is a compiled, linked GPU shader program.
type Program interface {
	Errors() []string
	Bind()
	Destroy()
}
