package mem

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Size units for capacities.
const (
	_          = iota
	KB  uint64 = 1 << (10 * iota)
	MB
	GB
)

// ErrOutOfBounds is wrapped by every storage access that touches a byte
// outside the buffer.
var ErrOutOfBounds = errors.New("access outside of storage")

// A Storage is the fixed-size byte buffer behind a Memory. Multi-byte values
// are laid out in the storage's byte order.
type Storage struct {
	data  []byte
	order binary.ByteOrder
}

// NewStorage creates a zeroed storage of capacity bytes.
func NewStorage(capacity uint64, order binary.ByteOrder) *Storage {
	if order == nil {
		order = binary.LittleEndian
	}

	return &Storage{
		data:  make([]byte, capacity),
		order: order,
	}
}

// Capacity returns the size of the storage in bytes.
func (s *Storage) Capacity() uint64 {
	return uint64(len(s.data))
}

// ByteOrder returns the layout used by the multi-byte accessors.
func (s *Storage) ByteOrder() binary.ByteOrder {
	return s.order
}

func (s *Storage) bytes(address int64, n int) ([]byte, error) {
	if address < 0 || uint64(address)+uint64(n) > uint64(len(s.data)) {
		return nil, errors.Wrapf(ErrOutOfBounds,
			"[%#x, %#x) with capacity %#x",
			address, address+int64(n), len(s.data))
	}

	return s.data[address : address+int64(n)], nil
}

// Read returns a copy of n bytes starting at address.
func (s *Storage) Read(address int64, n int) ([]byte, error) {
	b, err := s.bytes(address, n)
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, b)

	return out, nil
}

// Write copies data into the storage starting at address. Nothing is written
// if any byte falls outside.
func (s *Storage) Write(address int64, data []byte) error {
	b, err := s.bytes(address, len(data))
	if err != nil {
		return err
	}

	copy(b, data)

	return nil
}

// Read8 loads one byte.
func (s *Storage) Read8(address int64) (uint8, error) {
	b, err := s.bytes(address, 1)
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

// Read16 loads two bytes.
func (s *Storage) Read16(address int64) (uint16, error) {
	b, err := s.bytes(address, 2)
	if err != nil {
		return 0, err
	}

	return s.order.Uint16(b), nil
}

// Read32 loads four bytes.
func (s *Storage) Read32(address int64) (uint32, error) {
	b, err := s.bytes(address, 4)
	if err != nil {
		return 0, err
	}

	return s.order.Uint32(b), nil
}

// Write8 stores one byte.
func (s *Storage) Write8(address int64, v uint8) error {
	b, err := s.bytes(address, 1)
	if err != nil {
		return err
	}

	b[0] = v

	return nil
}

// Write16 stores two bytes.
func (s *Storage) Write16(address int64, v uint16) error {
	b, err := s.bytes(address, 2)
	if err != nil {
		return err
	}

	s.order.PutUint16(b, v)

	return nil
}

// Write32 stores four bytes.
func (s *Storage) Write32(address int64, v uint32) error {
	b, err := s.bytes(address, 4)
	if err != nil {
		return err
	}

	s.order.PutUint32(b, v)

	return nil
}
