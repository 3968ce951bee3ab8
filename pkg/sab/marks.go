// Package sab provides the binary protocol shared with the reader UI over a
// SharedArrayBuffer, and (under js/wasm) zero-copy access to the buffer.
package sab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kittclouds/readmark/pkg/annotation"
	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/pagerect"
)

// Message types for the binary protocol
const (
	MsgTypeNone      uint32 = 0
	MsgTypePageMarks uint32 = 1
	MsgTypeAck       uint32 = 0xFF
)

// Header offsets (first 16 bytes are header)
const (
	OffsetReady     = 0  // int32: 0 = idle, 1 = data ready
	OffsetLength    = 4  // uint32: payload length
	OffsetMsgType   = 8  // uint32: message type
	OffsetReserved  = 12 // uint32: page number for MsgTypePageMarks
	OffsetPayload   = 16 // payload starts here
	DefaultBufferSz = 65536
)

// ErrTooLarge is returned when a payload does not fit the shared buffer.
var ErrTooLarge = errors.New("sab: payload exceeds buffer")

// ErrShortPayload is returned when decoding runs past the end of a payload.
var ErrShortPayload = errors.New("sab: short payload")

// Kind codes on the wire.
const (
	KindHighlight     uint8 = 0
	KindUnderline     uint8 = 1
	KindStrikethrough uint8 = 2
)

const markSize = 4*4 + 1 + 1 + 2 + 4 // rect, kind, pad, id index, rgba

func kindCode(k annotation.Kind) uint8 {
	switch k {
	case annotation.KindUnderline:
		return KindUnderline
	case annotation.KindStrikethrough:
		return KindStrikethrough
	}
	return KindHighlight
}

func kindOf(c uint8) annotation.Kind {
	switch c {
	case KindUnderline:
		return annotation.KindUnderline
	case KindStrikethrough:
		return annotation.KindStrikethrough
	}
	return annotation.KindHighlight
}

// EncodePageMarks encodes resolved page marks in paint order.
//
// Format: [count:4] then per mark
// [x:f32][y:f32][w:f32][h:f32][kind:1][pad:1][idIndex:2][rgba:4] = 24 bytes,
// then the id table [n:4] and per id [len:2][utf8 bytes]. Marks of one
// annotation share an id index. All integers are little endian.
func EncodePageMarks(marks []pagerect.Mark) []byte {
	index := make(map[string]uint16)
	var table []string
	for _, m := range marks {
		if _, ok := index[m.AnnotationID]; !ok {
			index[m.AnnotationID] = uint16(len(table))
			table = append(table, m.AnnotationID)
		}
	}

	size := 4 + len(marks)*markSize + 4
	for _, id := range table {
		size += 2 + len(id)
	}
	data := make([]byte, size)

	binary.LittleEndian.PutUint32(data[0:4], uint32(len(marks)))

	offset := 4
	for _, m := range marks {
		binary.LittleEndian.PutUint32(data[offset:offset+4], math.Float32bits(float32(m.Rect.X)))
		binary.LittleEndian.PutUint32(data[offset+4:offset+8], math.Float32bits(float32(m.Rect.Y)))
		binary.LittleEndian.PutUint32(data[offset+8:offset+12], math.Float32bits(float32(m.Rect.Width)))
		binary.LittleEndian.PutUint32(data[offset+12:offset+16], math.Float32bits(float32(m.Rect.Height)))
		data[offset+16] = kindCode(m.Kind)
		binary.LittleEndian.PutUint16(data[offset+18:offset+20], index[m.AnnotationID])
		binary.BigEndian.PutUint32(data[offset+20:offset+24], rgba(m.Color))
		offset += markSize
	}

	binary.LittleEndian.PutUint32(data[offset:offset+4], uint32(len(table)))
	offset += 4
	for _, id := range table {
		binary.LittleEndian.PutUint16(data[offset:offset+2], uint16(len(id)))
		copy(data[offset+2:], id)
		offset += 2 + len(id)
	}
	return data
}

// DecodePageMarks is the inverse of EncodePageMarks. Colors come back as
// #rrggbb, or #rrggbbaa when not opaque. CreatedAt is not on the wire.
func DecodePageMarks(data []byte) ([]pagerect.Mark, error) {
	if len(data) < 4 {
		return nil, ErrShortPayload
	}
	count := int(binary.LittleEndian.Uint32(data[0:4]))
	offset := 4
	if count < 0 || len(data) < offset+count*markSize+4 {
		return nil, ErrShortPayload
	}

	marks := make([]pagerect.Mark, count)
	idx := make([]uint16, count)
	for i := range marks {
		f := func(at int) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[offset+at : offset+at+4])))
		}
		marks[i].Rect = geometry.Rect{X: f(0), Y: f(4), Width: f(8), Height: f(12)}
		marks[i].Kind = kindOf(data[offset+16])
		idx[i] = binary.LittleEndian.Uint16(data[offset+18 : offset+20])
		marks[i].Color = hexOf(binary.BigEndian.Uint32(data[offset+20 : offset+24]))
		offset += markSize
	}

	n := int(binary.LittleEndian.Uint32(data[offset : offset+4]))
	offset += 4
	table := make([]string, 0, n)
	for range n {
		if len(data) < offset+2 {
			return nil, ErrShortPayload
		}
		l := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		if len(data) < offset+2+l {
			return nil, ErrShortPayload
		}
		table = append(table, string(data[offset+2:offset+2+l]))
		offset += 2 + l
	}

	for i := range marks {
		if int(idx[i]) >= len(table) {
			return nil, fmt.Errorf("sab: id index %d out of range", idx[i])
		}
		marks[i].AnnotationID = table[idx[i]]
	}
	return marks, nil
}

// rgba parses #rgb, #rrggbb or #rrggbbaa. Anything else is opaque black.
func rgba(hex string) uint32 {
	s := strings.TrimPrefix(hex, "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) == 6 {
		s += "ff"
	}
	if len(s) != 8 {
		return 0x000000ff
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0x000000ff
	}
	return uint32(v)
}

func hexOf(v uint32) string {
	if v&0xff == 0xff {
		return fmt.Sprintf("#%06x", v>>8)
	}
	return fmt.Sprintf("#%08x", v)
}
