//go:build js && wasm

package sab

import (
	"encoding/binary"
	"syscall/js"

	"github.com/kittclouds/readmark/pkg/pagerect"
)

// SharedBuffer provides zero-copy access to a JS SharedArrayBuffer
type SharedBuffer struct {
	uint8View js.Value // Uint8Array view for byte access
	int32View js.Value // Int32Array view for Atomics
	length    int
}

// New wraps a JavaScript SharedArrayBuffer
func New(sabValue js.Value) *SharedBuffer {
	if sabValue.IsUndefined() || sabValue.IsNull() {
		return nil
	}

	return &SharedBuffer{
		uint8View: js.Global().Get("Uint8Array").New(sabValue),
		int32View: js.Global().Get("Int32Array").New(sabValue),
		length:    sabValue.Get("byteLength").Int(),
	}
}

// Length returns the buffer size
func (s *SharedBuffer) Length() int {
	return s.length
}

func (s *SharedBuffer) writeBytes(offset int, data []byte) {
	subarray := s.uint8View.Call("subarray", offset, offset+len(data))
	js.CopyBytesToJS(subarray, data)
}

// WriteMessage writes header and payload, then sets the ready flag and wakes
// any waiting reader. extra lands in the reserved header word.
func (s *SharedBuffer) WriteMessage(msgType, extra uint32, payload []byte) error {
	if len(payload)+OffsetPayload > s.length {
		return ErrTooLarge
	}

	header := make([]byte, OffsetPayload)
	binary.LittleEndian.PutUint32(header[OffsetLength:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[OffsetMsgType:], msgType)
	binary.LittleEndian.PutUint32(header[OffsetReserved:], extra)
	s.writeBytes(0, header)
	s.writeBytes(OffsetPayload, payload)

	atomics := js.Global().Get("Atomics")
	atomics.Call("store", s.int32View, OffsetReady/4, 1)
	atomics.Call("notify", s.int32View, OffsetReady/4, 1)
	return nil
}

// WritePageMarks publishes the resolved marks of one page.
func (s *SharedBuffer) WritePageMarks(page int, marks []pagerect.Mark) error {
	return s.WriteMessage(MsgTypePageMarks, uint32(page), EncodePageMarks(marks))
}
