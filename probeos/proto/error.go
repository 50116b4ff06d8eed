package proto

import "encoding/binary"

// ErrorPayload encodes a MsgError payload.
//
// Layout (little-endian):
//   - u16: code
//   - u16: ref kind (the request kind that failed)
//   - bytes: detail text
func ErrorPayload(code ErrCode, ref Kind, detail []byte) []byte {
	buf := make([]byte, 4+len(detail))
	binary.LittleEndian.PutUint16(buf[0:2], uint16(code))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(ref))
	copy(buf[4:], detail)
	return buf
}

func DecodeErrorPayload(b []byte) (code ErrCode, ref Kind, detail []byte, ok bool) {
	if len(b) < 4 {
		return 0, 0, nil, false
	}
	code = ErrCode(binary.LittleEndian.Uint16(b[0:2]))
	ref = Kind(binary.LittleEndian.Uint16(b[2:4]))
	return code, ref, b[4:], true
}
