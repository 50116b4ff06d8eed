package proto

import "encoding/binary"

// ChannelPayload encodes MsgAnalyzerToggle.
//
// Layout:
//   - u8: channel ordinal (1..3)
func ChannelPayload(channel uint8) []byte { return []byte{channel} }

func DecodeChannelPayload(b []byte) (channel uint8, ok bool) {
	if len(b) != 1 {
		return 0, false
	}
	return b[0], true
}

// FreqPayload encodes MsgAnalyzerFreq.
//
// Layout (little-endian):
//   - u32: sample frequency in Hz
func FreqPayload(hz uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, hz)
	return buf
}

func DecodeFreqPayload(b []byte) (hz uint32, ok bool) {
	if len(b) != 4 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// TriggerPayload encodes MsgAnalyzerTrigger.
//
// Layout:
//   - u8: channel (0 = free-run)
//   - u8: edge (0 rising, 1 falling, 2 either)
//   - u8: position percent
func TriggerPayload(channel, edge, position uint8) []byte {
	return []byte{channel, edge, position}
}

func DecodeTriggerPayload(b []byte) (channel, edge, position uint8, ok bool) {
	if len(b) != 3 {
		return 0, 0, 0, false
	}
	return b[0], b[1], b[2], true
}

// ModePayload encodes MsgAnalyzerMode.
//
// Layout:
//   - u8: mode (0 auto, 1 single)
func ModePayload(mode uint8) []byte { return []byte{mode} }

func DecodeModePayload(b []byte) (mode uint8, ok bool) {
	if len(b) != 1 {
		return 0, false
	}
	return b[0], true
}

// SettingsLen is the size of a settings payload.
const SettingsLen = 9

// SettingsPayload encodes MsgSettingsSave.
//
// Layout (little-endian):
//   - u32: sample frequency in Hz
//   - u8: enabled channel mask
//   - u8: trigger channel
//   - u8: trigger edge
//   - u8: trigger position
//   - u8: mode
func SettingsPayload(hz uint32, enabled, trigCh, edge, position, mode uint8) []byte {
	buf := make([]byte, SettingsLen)
	binary.LittleEndian.PutUint32(buf[0:4], hz)
	buf[4] = enabled
	buf[5] = trigCh
	buf[6] = edge
	buf[7] = position
	buf[8] = mode
	return buf
}

func DecodeSettingsPayload(b []byte) (hz uint32, enabled, trigCh, edge, position, mode uint8, ok bool) {
	if len(b) != SettingsLen {
		return 0, 0, 0, 0, 0, 0, false
	}
	return binary.LittleEndian.Uint32(b[0:4]), b[4], b[5], b[6], b[7], b[8], true
}
