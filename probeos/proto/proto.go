// Package proto defines the message kinds exchanged between tasks and the
// little-endian payload layouts they carry.
package proto

// Kind identifies the message type carried in kernel.Message.Kind.
type Kind uint16

const (
	MsgLogLine Kind = iota + 1
	MsgError
	MsgAnalyzerToggle
	MsgAnalyzerFreq
	MsgAnalyzerTrigger
	MsgAnalyzerMode
	MsgAnalyzerRun
	MsgAnalyzerCancel
	MsgSettingsSave
	MsgSettingsSaved
)

func (k Kind) String() string {
	switch k {
	case MsgLogLine:
		return "log_line"
	case MsgError:
		return "error"
	case MsgAnalyzerToggle:
		return "analyzer_toggle"
	case MsgAnalyzerFreq:
		return "analyzer_freq"
	case MsgAnalyzerTrigger:
		return "analyzer_trigger"
	case MsgAnalyzerMode:
		return "analyzer_mode"
	case MsgAnalyzerRun:
		return "analyzer_run"
	case MsgAnalyzerCancel:
		return "analyzer_cancel"
	case MsgSettingsSave:
		return "settings_save"
	case MsgSettingsSaved:
		return "settings_saved"
	default:
		return "unknown"
	}
}

// ErrCode is a generic error category for MsgError responses.
type ErrCode uint16

const (
	ErrUnknown ErrCode = iota
	ErrBadMessage
	ErrBusy
	ErrInvalid
	ErrInternal
)

func (c ErrCode) String() string {
	switch c {
	case ErrBadMessage:
		return "bad_message"
	case ErrBusy:
		return "busy"
	case ErrInvalid:
		return "invalid"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}
