package native

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// MemoryReader reads raw bytes of host process state at resolved addresses.
// Implementations must contain their own faults and report them as errors;
// a bad address must never take down the process.
type MemoryReader interface {
	ReadByte(addr uintptr) (byte, error)
	ReadUint64(addr uintptr) (uint64, error)
}

// StateAddresses holds the resolved addresses of the host state the agent
// reads directly. Resolution is a configuration step, not a compile-time
// constant.
type StateAddresses struct {
	ComboPoints uintptr
	TargetGUID  uintptr
	PlayerGUID  uintptr
}

// MappedMemory is a map-backed MemoryReader for simulation and tests.
// Reads outside mapped regions fail the way a bad host pointer would.
type MappedMemory struct {
	mu    sync.RWMutex
	cells map[uintptr][]byte
}

// NewMappedMemory creates an empty simulated memory.
func NewMappedMemory() *MappedMemory {
	return &MappedMemory{cells: make(map[uintptr][]byte)}
}

// Put maps a byte region at the given address, replacing any prior mapping.
func (m *MappedMemory) Put(addr uintptr, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cells[addr] = append([]byte(nil), data...)
}

// PutByte maps a single byte at the given address.
func (m *MappedMemory) PutByte(addr uintptr, b byte) {
	m.Put(addr, []byte{b})
}

// PutUint64 maps a little-endian 8-byte value at the given address.
func (m *MappedMemory) PutUint64(addr uintptr, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	m.Put(addr, buf[:])
}

func (m *MappedMemory) ReadByte(addr uintptr) (byte, error) {
	data, err := m.read(addr, 1)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}

func (m *MappedMemory) ReadUint64(addr uintptr) (uint64, error) {
	data, err := m.read(addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

func (m *MappedMemory) read(addr uintptr, size int) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.cells[addr]
	if !ok || len(data) < size {
		return nil, fmt.Errorf("invalid read of %d bytes at 0x%X", size, addr)
	}
	return data[:size], nil
}

// Interface guard
var _ MemoryReader = &MappedMemory{}
