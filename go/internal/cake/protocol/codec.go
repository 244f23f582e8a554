package protocol

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed is returned for any payload that cannot be decoded.
var ErrMalformed = errors.New("malformed message")

// AppendClientMessage appends the framed encoding of m to b.
func AppendClientMessage(b []byte, m ClientMessage) []byte {
	size := protowire.SizeTag(fieldWindForce) + protowire.SizeFixed32()

	b = protowire.AppendVarint(b, uint64(size))
	b = appendFloat(b, fieldWindForce, m.WindForce)
	return b
}

// AppendServerMessage appends the framed encoding of m to b. The server calls
// it once per tick and fans the resulting bytes out to every connection.
func AppendServerMessage(b []byte, m ServerMessage) []byte {
	size := protowire.SizeTag(fieldClientCount) + protowire.SizeVarint(uint64(m.ClientCount)) +
		protowire.SizeTag(fieldCandleCount) + protowire.SizeVarint(uint64(m.CandleCount)) +
		protowire.SizeTag(fieldBlownOutCandleCount) + protowire.SizeVarint(uint64(m.BlownOutCandleCount)) +
		protowire.SizeTag(fieldTotalWindForce) + protowire.SizeFixed32()

	b = protowire.AppendVarint(b, uint64(size))
	b = appendCount(b, fieldClientCount, m.ClientCount)
	b = appendCount(b, fieldCandleCount, m.CandleCount)
	b = appendCount(b, fieldBlownOutCandleCount, m.BlownOutCandleCount)
	b = appendFloat(b, fieldTotalWindForce, m.TotalWindForce)
	return b
}

// DecodeClientMessage decodes a single framed ClientMessage.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var m ClientMessage
	err := decodeFrame(data, func(num protowire.Number, r *fieldReader) error {
		switch num {
		case fieldWindForce:
			v, err := r.float()
			m.WindForce = v
			return err
		default:
			return r.skip()
		}
	})
	if err != nil {
		return ClientMessage{}, fmt.Errorf("decode client message: %w", err)
	}
	return m, nil
}

// DecodeServerMessage decodes a single framed ServerMessage.
func DecodeServerMessage(data []byte) (ServerMessage, error) {
	var m ServerMessage
	err := decodeFrame(data, func(num protowire.Number, r *fieldReader) error {
		var err error
		switch num {
		case fieldClientCount:
			m.ClientCount, err = r.count()
		case fieldCandleCount:
			m.CandleCount, err = r.count()
		case fieldBlownOutCandleCount:
			m.BlownOutCandleCount, err = r.count()
		case fieldTotalWindForce:
			m.TotalWindForce, err = r.float()
		default:
			err = r.skip()
		}
		return err
	})
	if err != nil {
		return ServerMessage{}, fmt.Errorf("decode server message: %w", err)
	}
	return m, nil
}

func appendCount(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// decodeFrame strips the length prefix, checks there is nothing after the
// frame, and calls field for every field of the body.
func decodeFrame(data []byte, field func(protowire.Number, *fieldReader) error) error {
	body, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return fmt.Errorf("%w: frame: %w", ErrMalformed, protowire.ParseError(n))
	}
	if n != len(data) {
		return fmt.Errorf("%w: %d trailing bytes after frame", ErrMalformed, len(data)-n)
	}

	r := &fieldReader{buf: body}
	for len(r.buf) > 0 {
		num, typ, n := protowire.ConsumeTag(r.buf)
		if n < 0 {
			return fmt.Errorf("%w: tag: %w", ErrMalformed, protowire.ParseError(n))
		}
		r.buf = r.buf[n:]
		r.num, r.typ = num, typ

		if err := field(num, r); err != nil {
			return err
		}
	}
	return nil
}

// fieldReader consumes the value of the field whose tag was just read.
type fieldReader struct {
	buf []byte
	num protowire.Number
	typ protowire.Type
}

func (r *fieldReader) expect(typ protowire.Type) error {
	if r.typ != typ {
		return fmt.Errorf("%w: field %d has wire type %d, want %d", ErrMalformed, r.num, r.typ, typ)
	}
	return nil
}

func (r *fieldReader) count() (uint32, error) {
	if err := r.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %w", ErrMalformed, r.num, protowire.ParseError(n))
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: field %d overflows uint32", ErrMalformed, r.num)
	}
	r.buf = r.buf[n:]
	return uint32(v), nil
}

func (r *fieldReader) float() (float32, error) {
	if err := r.expect(protowire.Fixed32Type); err != nil {
		return 0, err
	}
	v, n := protowire.ConsumeFixed32(r.buf)
	if n < 0 {
		return 0, fmt.Errorf("%w: field %d: %w", ErrMalformed, r.num, protowire.ParseError(n))
	}
	f := math.Float32frombits(v)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return 0, fmt.Errorf("%w: field %d is not finite", ErrMalformed, r.num)
	}
	r.buf = r.buf[n:]
	return f, nil
}

func (r *fieldReader) skip() error {
	n := protowire.ConsumeFieldValue(r.num, r.typ, r.buf)
	if n < 0 {
		return fmt.Errorf("%w: field %d: %w", ErrMalformed, r.num, protowire.ParseError(n))
	}
	r.buf = r.buf[n:]
	return nil
}
