// Package settings persists the analyzer configuration in the last erase
// block of flash.
package settings

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/proto"
)

const (
	recordMagic   = 0x4250_4d4c // "LMPB"
	recordVersion = 1

	headerLen = 8
	// RecordLen is the encoded size of a settings record.
	RecordLen = headerLen + proto.SettingsLen + 4
)

var (
	ErrNoRecord = errors.New("settings: no record")
	ErrCorrupt  = errors.New("settings: corrupt record")
	ErrNoFlash  = errors.New("settings: flash unavailable")
)

// Payload encodes s as a MsgSettingsSave payload.
func Payload(s acq.Settings) []byte {
	return proto.SettingsPayload(s.SampleFrequency, s.EnabledChannels, s.TriggerChannel,
		uint8(s.TriggerEdge), s.TriggerPosition, uint8(s.Mode))
}

// FromPayload decodes and validates a MsgSettingsSave payload.
func FromPayload(b []byte) (acq.Settings, error) {
	hz, en, ch, edge, pos, mode, ok := proto.DecodeSettingsPayload(b)
	if !ok {
		return acq.Settings{}, fmt.Errorf("%w: payload length %d", ErrCorrupt, len(b))
	}
	s := acq.Settings{
		SampleFrequency: hz,
		EnabledChannels: en,
		TriggerChannel:  ch,
		TriggerEdge:     hal.Edge(edge),
		TriggerPosition: pos,
		Mode:            acq.Mode(mode),
	}
	if err := s.Validate(); err != nil {
		return acq.Settings{}, err
	}
	return s, nil
}

// Encode builds a flash record.
//
// Layout (little-endian):
//   - u32: magic
//   - u16: version
//   - u16: payload length
//   - payload (see proto.SettingsPayload)
//   - u32: CRC-32 (IEEE) of everything before it
func Encode(s acq.Settings) []byte {
	payload := Payload(s)
	buf := make([]byte, RecordLen)
	binary.LittleEndian.PutUint32(buf[0:4], recordMagic)
	binary.LittleEndian.PutUint16(buf[4:6], recordVersion)
	binary.LittleEndian.PutUint16(buf[6:8], uint16(len(payload)))
	copy(buf[headerLen:], payload)
	sum := crc32.ChecksumIEEE(buf[:RecordLen-4])
	binary.LittleEndian.PutUint32(buf[RecordLen-4:], sum)
	return buf
}

// Decode parses a flash record. An erased record reports ErrNoRecord.
func Decode(b []byte) (acq.Settings, error) {
	if len(b) < RecordLen {
		return acq.Settings{}, fmt.Errorf("%w: short record", ErrCorrupt)
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic == 0xFFFF_FFFF {
		return acq.Settings{}, ErrNoRecord
	}
	if magic != recordMagic {
		return acq.Settings{}, fmt.Errorf("%w: magic %#x", ErrCorrupt, magic)
	}
	if v := binary.LittleEndian.Uint16(b[4:6]); v != recordVersion {
		return acq.Settings{}, fmt.Errorf("%w: version %d", ErrCorrupt, v)
	}
	if n := binary.LittleEndian.Uint16(b[6:8]); n != proto.SettingsLen {
		return acq.Settings{}, fmt.Errorf("%w: payload length %d", ErrCorrupt, n)
	}
	want := binary.LittleEndian.Uint32(b[RecordLen-4 : RecordLen])
	if got := crc32.ChecksumIEEE(b[:RecordLen-4]); got != want {
		return acq.Settings{}, fmt.Errorf("%w: crc %#08x, want %#08x", ErrCorrupt, got, want)
	}
	return FromPayload(b[headerLen : headerLen+proto.SettingsLen])
}

// Store reads and writes the record in the last erase block of a flash.
type Store struct {
	flash hal.Flash
	off   uint32
	block uint32
}

func NewStore(f hal.Flash) (*Store, error) {
	if f == nil {
		return nil, ErrNoFlash
	}
	size, block := f.SizeBytes(), f.EraseBlockBytes()
	if size == 0 || block == 0 || size < block || block < RecordLen {
		return nil, fmt.Errorf("%w: size %d erase block %d", ErrNoFlash, size, block)
	}
	return &Store{flash: f, off: size - block, block: block}, nil
}

// Offset is the flash address of the record.
func (s *Store) Offset() uint32 { return s.off }

func (s *Store) Load() (acq.Settings, error) {
	buf := make([]byte, RecordLen)
	if _, err := s.flash.ReadAt(buf, s.off); err != nil {
		return acq.Settings{}, fmt.Errorf("settings: read: %w", err)
	}
	return Decode(buf)
}

// LoadOrDefault returns the stored settings, or the defaults with the
// reason they were not used.
func (s *Store) LoadOrDefault() (acq.Settings, error) {
	st, err := s.Load()
	if err != nil {
		return acq.DefaultSettings(), err
	}
	return st, nil
}

// Save erases the record block and writes a new record.
func (s *Store) Save(st acq.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	if err := s.flash.Erase(s.off, s.block); err != nil {
		return fmt.Errorf("settings: erase: %w", err)
	}
	if _, err := s.flash.WriteAt(Encode(st), s.off); err != nil {
		return fmt.Errorf("settings: write: %w", err)
	}
	return nil
}
