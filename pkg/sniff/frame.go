package sniff

// Frame markers.
const (
	FrameStart = "rx"
	FrameEnd   = "h"
	LineEnd    = "\r\n"
	Heartbeat  = "\r"
)

const hexDigits = "0123456789ABCDEF"

// Frame is the bytes collected by one drain, in arrival order.
type Frame []byte

// AppendFrame appends the textual form of the frame carrying data to dst.
func AppendFrame(dst []byte, data []byte) []byte {
	dst = append(dst, FrameStart...)
	for _, b := range data {
		dst = append(dst, ' ', hexDigits[b>>4], hexDigits[b&0x0f])
	}
	dst = append(dst, FrameEnd...)
	return append(dst, LineEnd...)
}

// FrameLen returns the encoded length of a frame with n data bytes.
func FrameLen(n int) int {
	return len(FrameStart) + 3*n + len(FrameEnd) + len(LineEnd)
}

// FormatFrame returns the frame carrying data without the line terminator,
// as shown by monitors.
func FormatFrame(data []byte) string {
	line := AppendFrame(make([]byte, 0, FrameLen(len(data))), data)
	return string(line[:len(line)-len(LineEnd)])
}

// Bytes returns the encoded frame.
func (f Frame) Bytes() []byte {
	return AppendFrame(make([]byte, 0, FrameLen(len(f))), f)
}

// String returns the encoded frame.
func (f Frame) String() string {
	return string(f.Bytes())
}
