package proto

import "testing"

func TestTriggerPayload(t *testing.T) {
	ch, edge, pos, ok := DecodeTriggerPayload(TriggerPayload(2, 1, 75))
	if !ok || ch != 2 || edge != 1 || pos != 75 {
		t.Fatalf("DecodeTriggerPayload() = %d, %d, %d, %v, want 2, 1, 75, true", ch, edge, pos, ok)
	}
}

func TestSettingsPayload(t *testing.T) {
	b := SettingsPayload(2_500_000, 0b101, 3, 2, 10, 1)
	if len(b) != SettingsLen {
		t.Fatalf("len = %d, want %d", len(b), SettingsLen)
	}
	hz, en, ch, edge, pos, mode, ok := DecodeSettingsPayload(b)
	if !ok || hz != 2_500_000 || en != 0b101 || ch != 3 || edge != 2 || pos != 10 || mode != 1 {
		t.Fatalf("DecodeSettingsPayload() = %d %d %d %d %d %d %v", hz, en, ch, edge, pos, mode, ok)
	}
}

func TestDecodeRejectsShortPayloads(t *testing.T) {
	if _, ok := DecodeFreqPayload([]byte{1, 2, 3}); ok {
		t.Fatalf("DecodeFreqPayload(3 bytes) ok")
	}
	if _, _, _, ok := DecodeTriggerPayload([]byte{1}); ok {
		t.Fatalf("DecodeTriggerPayload(1 byte) ok")
	}
	if _, ok := DecodeChannelPayload(nil); ok {
		t.Fatalf("DecodeChannelPayload(nil) ok")
	}
	if _, _, _, _, _, _, ok := DecodeSettingsPayload(make([]byte, SettingsLen-1)); ok {
		t.Fatalf("DecodeSettingsPayload(short) ok")
	}
	if _, _, _, ok := DecodeErrorPayload([]byte{1}); ok {
		t.Fatalf("DecodeErrorPayload(1 byte) ok")
	}
}

func TestErrorPayload(t *testing.T) {
	code, ref, detail, ok := DecodeErrorPayload(ErrorPayload(ErrInvalid, MsgAnalyzerFreq, []byte("range")))
	if !ok || code != ErrInvalid || ref != MsgAnalyzerFreq || string(detail) != "range" {
		t.Fatalf("DecodeErrorPayload() = %v, %v, %q, %v", code, ref, detail, ok)
	}
}

func TestLogLinePayloadTruncates(t *testing.T) {
	src := []byte("0123456789")
	got := LogLinePayload(src, 4)
	if string(got) != "0123" {
		t.Fatalf("LogLinePayload() = %q, want %q", got, "0123")
	}
	got[0] = 'x'
	if src[0] != '0' {
		t.Fatalf("LogLinePayload aliases its input")
	}
}
