// Package network carries commands from the ground station to the
// robot's queues and status reports back, over a single TCP
// connection of fixed size records.
package network

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// CommandType marks a record that carries a command.
	CommandType int32 = 0x09

	// RecordSize is the size of one record on the wire.
	RecordSize = 7 * 4

	// DefaultPort is the port the robot listens on.
	DefaultPort = 9090
)

// ErrShortMessage is returned when fewer than RecordSize bytes are
// available to decode.
var ErrShortMessage = errors.New("short network record")

// Message is one record: seven big endian 32 bit integers in field
// order.
type Message struct {
	ID            int32
	TimestampHigh int32
	TimestampLow  int32
	Type          int32
	Destination   int32
	Message       int32
	Checksum      int32
}

// NewCommand builds a checksummed command record addressed to dest.
func NewCommand(id int32, at time.Time, dest, msg int32) Message {
	ms := at.UnixMilli()
	m := Message{
		ID:            id,
		TimestampHigh: int32(ms >> 32),
		TimestampLow:  int32(ms),
		Type:          CommandType,
		Destination:   dest,
		Message:       msg,
	}
	m.Checksum = m.ComputeChecksum()
	return m
}

// NewReport builds a report record.  Reports leave the header zeroed,
// so the checksum reduces to Destination^Message and receivers that
// only look at the last three words can still verify it.
func NewReport(dest, msg int32) Message {
	m := Message{Destination: dest, Message: msg}
	m.Checksum = m.ComputeChecksum()
	return m
}

// ComputeChecksum is the XOR of the first six fields.
func (m Message) ComputeChecksum() int32 {
	return m.ID ^ m.TimestampHigh ^ m.TimestampLow ^ m.Type ^ m.Destination ^ m.Message
}

// Valid reports whether the stored checksum matches the fields.
func (m Message) Valid() bool {
	return m.Checksum == m.ComputeChecksum()
}

// Timestamp recovers the send time of a command record.
func (m Message) Timestamp() time.Time {
	ms := int64(m.TimestampHigh)<<32 | int64(uint32(m.TimestampLow))
	return time.UnixMilli(ms)
}

func (m Message) fields() [7]int32 {
	return [7]int32{m.ID, m.TimestampHigh, m.TimestampLow, m.Type, m.Destination, m.Message, m.Checksum}
}

// MarshalBinary encodes the record for the wire.
func (m Message) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RecordSize)
	for i, v := range m.fields() {
		binary.BigEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf, nil
}

// UnmarshalBinary decodes a record from the wire.
func (m *Message) UnmarshalBinary(b []byte) error {
	if len(b) < RecordSize {
		return fmt.Errorf("%w: %d bytes", ErrShortMessage, len(b))
	}
	var f [7]int32
	for i := range f {
		f[i] = int32(binary.BigEndian.Uint32(b[i*4:]))
	}
	*m = Message{
		ID:            f[0],
		TimestampHigh: f[1],
		TimestampLow:  f[2],
		Type:          f[3],
		Destination:   f[4],
		Message:       f[5],
		Checksum:      f[6],
	}
	return nil
}

// Decode is UnmarshalBinary as a function.
func Decode(b []byte) (Message, error) {
	var m Message
	err := m.UnmarshalBinary(b)
	return m, err
}

// ReadMessage reads exactly one record.
func ReadMessage(r io.Reader) (Message, error) {
	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Message{}, err
	}
	return Decode(buf)
}

// WriteMessage writes one record.
func WriteMessage(w io.Writer, m Message) error {
	buf, _ := m.MarshalBinary()
	_, err := w.Write(buf)
	return err
}
