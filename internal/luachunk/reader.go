// Copyright 2026 The luavm Authors
// SPDX-License-Identifier: MIT

package luachunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

type chunkReader struct {
	s []byte

	byteOrder   binary.ByteOrder
	integerSize int
	numberSize  int
}

func newChunkReader(s []byte) (*chunkReader, error) {
	r := &chunkReader{s: s}
	if !r.literal(Signature) {
		return nil, errors.New("missing signature")
	}
	if version, ok := r.readByte(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if version != luacVersion {
		return nil, fmt.Errorf("%w (chunk is %d.%d, want 5.4)", ErrVersionMismatch, version>>4, version&0xf)
	}
	if format, ok := r.readByte(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if format != luacFormat {
		return nil, errors.New("format mismatch")
	}
	if !r.literal(luacData) {
		return nil, errors.New("corrupted chunk")
	}

	if instructionSize, ok := r.readByte(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if instructionSize != 4 {
		return nil, errors.New("instruction size must be 4")
	}
	integerSize, ok := r.readByte()
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	if integerSize != 4 && integerSize != 8 {
		return nil, fmt.Errorf("unsupported integer size (%d)", integerSize)
	}
	r.integerSize = int(integerSize)
	numberSize, ok := r.readByte()
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	if numberSize != 4 && numberSize != 8 {
		return nil, fmt.Errorf("unsupported float size (%d)", numberSize)
	}
	r.numberSize = int(numberSize)

	if len(r.s) < r.integerSize {
		return nil, io.ErrUnexpectedEOF
	}
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		r.byteOrder = order
		if i, _ := r.peekInteger(); i == luacInt {
			break
		}
		r.byteOrder = nil
	}
	if r.byteOrder == nil {
		return nil, errors.New("integer format mismatch")
	}
	r.s = r.s[r.integerSize:]

	if n, ok := r.readNumber(); !ok {
		return nil, io.ErrUnexpectedEOF
	} else if n != luacNum {
		return nil, errors.New("float format mismatch")
	}
	return r, nil
}

func (r *chunkReader) readByte() (byte, bool) {
	if len(r.s) == 0 {
		return 0, false
	}
	b := r.s[0]
	r.s = r.s[1:]
	return b, true
}

func (r *chunkReader) readBool() (bool, bool) {
	b, ok := r.readByte()
	return b != 0, ok
}

func (r *chunkReader) peekInteger() (int64, bool) {
	if len(r.s) < r.integerSize {
		return 0, false
	}
	switch r.integerSize {
	case 4:
		return int64(int32(r.byteOrder.Uint32(r.s))), true
	case 8:
		return int64(r.byteOrder.Uint64(r.s)), true
	default:
		return 0, false
	}
}

func (r *chunkReader) readInteger() (int64, bool) {
	i, ok := r.peekInteger()
	if ok {
		r.s = r.s[r.integerSize:]
	}
	return i, ok
}

func (r *chunkReader) readNumber() (float64, bool) {
	if len(r.s) < r.numberSize {
		return 0, false
	}
	var f float64
	switch r.numberSize {
	case 4:
		f = float64(math.Float32frombits(r.byteOrder.Uint32(r.s)))
	case 8:
		f = math.Float64frombits(r.byteOrder.Uint64(r.s))
	default:
		return 0, false
	}
	r.s = r.s[r.numberSize:]
	return f, true
}

// readVarint reads an unsigned integer
// stored most significant group first,
// with the high bit set on the last byte.
func (r *chunkReader) readVarint() (int, error) {
	var x uint64
	for {
		b, ok := r.readByte()
		if !ok {
			return 0, io.ErrUnexpectedEOF
		}
		if x >= math.MaxInt>>7 {
			return 0, errors.New("integer overflow")
		}
		x = (x << 7) | uint64(b&0x7f)
		if b&0x80 != 0 {
			return int(x), nil
		}
	}
}

// readCount reads the length of an array
// whose elements take at least elemSize bytes each.
func (r *chunkReader) readCount(elemSize int) (int, error) {
	n, err := r.readVarint()
	if err != nil {
		return 0, err
	}
	if n > len(r.s)/elemSize {
		return 0, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (r *chunkReader) readString() (s string, valid bool, err error) {
	n, err := r.readVarint()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, nil
	}
	n--
	if len(r.s) < n {
		return "", false, io.ErrUnexpectedEOF
	}
	s = string(r.s[:n])
	r.s = r.s[n:]
	return s, true, nil
}

func (r *chunkReader) readInstruction() (Instruction, bool) {
	const size = 4
	if len(r.s) < size {
		return 0, false
	}
	i := Instruction(r.byteOrder.Uint32(r.s))
	r.s = r.s[size:]
	return i, true
}

func (r *chunkReader) readConstant(k *Constant) error {
	t, ok := r.readByte()
	if !ok {
		return io.ErrUnexpectedEOF
	}
	k.Kind = ConstantKind(t)
	switch k.Kind {
	case ConstantNil, ConstantFalse, ConstantTrue:
	case ConstantInteger:
		if k.Integer, ok = r.readInteger(); !ok {
			return io.ErrUnexpectedEOF
		}
	case ConstantFloat:
		if k.Float, ok = r.readNumber(); !ok {
			return io.ErrUnexpectedEOF
		}
	case ConstantShortString, ConstantLongString:
		var err error
		if k.Str, _, err = r.readString(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown type %#02x", t)
	}
	return nil
}

func (r *chunkReader) literal(prefix string) bool {
	if len(r.s) < len(prefix) || string(r.s[:len(prefix)]) != prefix {
		return false
	}
	r.s = r.s[len(prefix):]
	return true
}
