package light

import (
	"encoding/binary"
	"math"
)

// UniformArray is a fixed-capacity shader light array.
type UniformArray interface {
	// Capacity returns the number of light slots.
	Capacity() int

	// SetCount sets the number of active lights.
	SetCount(n int)

	// SetLight writes slot i. A zero Light clears the slot.
	SetLight(i int, l Light)
}

// Block layout in bytes. It matches the LightBlock struct declared by the
// effect programs:
//
//	struct PointLight {
//	    position: vec2<f32>,  //  0
//	    radius:   f32,        //  8
//	    _pad:     f32,        // 12
//	    color:    vec4<f32>,  // 16 (alpha unused)
//	}                         // 32 bytes
//
//	struct LightBlock {
//	    count: u32,           //  0
//	    _pad0: u32,           //  4
//	    _pad1: u32,           //  8
//	    _pad2: u32,           // 12
//	    items: array<PointLight, N>, // 16
//	}
const (
	BlockHeaderSize = 16
	BlockLightSize  = 32
)

// Block is a UniformArray backed by the byte layout the GPU programs read.
type Block struct {
	capacity int
	data     []byte
}

// NewBlock creates a zeroed block with the given number of slots.
func NewBlock(capacity int) *Block {
	return &Block{
		capacity: capacity,
		data:     make([]byte, BlockSize(capacity)),
	}
}

// BlockSize returns the byte size of a block with n slots.
func BlockSize(n int) int {
	return BlockHeaderSize + n*BlockLightSize
}

// Capacity implements UniformArray.
func (b *Block) Capacity() int { return b.capacity }

// SetCount implements UniformArray.
func (b *Block) SetCount(n int) {
	binary.LittleEndian.PutUint32(b.data[0:4], uint32(n))
}

// Count returns the active light count stored in the header.
func (b *Block) Count() int {
	return int(binary.LittleEndian.Uint32(b.data[0:4]))
}

// SetLight implements UniformArray.
func (b *Block) SetLight(i int, l Light) {
	off := BlockHeaderSize + i*BlockLightSize
	putFloat(b.data[off:], l.Position[0])
	putFloat(b.data[off+4:], l.Position[1])
	putFloat(b.data[off+8:], l.Radius)
	putFloat(b.data[off+12:], 0)
	putFloat(b.data[off+16:], l.Color[0])
	putFloat(b.data[off+20:], l.Color[1])
	putFloat(b.data[off+24:], l.Color[2])
	putFloat(b.data[off+28:], 0)
}

// Light decodes slot i.
func (b *Block) Light(i int) Light {
	off := BlockHeaderSize + i*BlockLightSize
	return Light{
		Position: [2]float32{getFloat(b.data[off:]), getFloat(b.data[off+4:])},
		Radius:   getFloat(b.data[off+8:]),
		Color: [3]float32{
			getFloat(b.data[off+16:]),
			getFloat(b.data[off+20:]),
			getFloat(b.data[off+24:]),
		},
	}
}

// Bytes returns the packed block. The slice aliases the block's storage.
func (b *Block) Bytes() []byte { return b.data }

func putFloat(dst []byte, v float32) {
	binary.LittleEndian.PutUint32(dst, math.Float32bits(v))
}

func getFloat(src []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(src))
}
