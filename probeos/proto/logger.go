package proto

// LogLinePayload copies b into a MsgLogLine payload: UTF-8 text without a
// trailing newline, truncated to max bytes. Delivery is best-effort.
func LogLinePayload(b []byte, max int) []byte {
	if len(b) > max {
		b = b[:max]
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	return cp
}
