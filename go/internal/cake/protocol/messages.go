// Package protocol defines the two messages exchanged between cake clients and
// the cake server and their binary encoding.
//
// Every frame is a varint length prefix followed by a body in protobuf wire
// format. Floats travel as fixed32 fields and counts as varint fields. There
// is no schema versioning: unknown fields are skipped and missing fields
// decode as zero.
package protocol

// Field numbers of ClientMessage.
const (
	fieldWindForce = 1
)

// Field numbers of ServerMessage.
const (
	fieldClientCount         = 1
	fieldCandleCount         = 2
	fieldBlownOutCandleCount = 3
	fieldTotalWindForce      = 4
)

// ClientMessage is sent by a client every client tick.
type ClientMessage struct {
	// WindForce is the locally measured blowing intensity, roughly in [0, 1].
	WindForce float32
}

// ServerMessage is broadcast by the server every server tick.
type ServerMessage struct {
	ClientCount         uint32
	CandleCount         uint32
	BlownOutCandleCount uint32
	TotalWindForce      float32
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m ClientMessage) MarshalBinary() ([]byte, error) {
	return AppendClientMessage(nil, m), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *ClientMessage) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeClientMessage(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (m ServerMessage) MarshalBinary() ([]byte, error) {
	return AppendServerMessage(nil, m), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (m *ServerMessage) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeServerMessage(data)
	if err != nil {
		return err
	}
	*m = decoded
	return nil
}
