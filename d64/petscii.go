package d64

// FillByte pads fixed-width name and label fields on the disk.
const FillByte = 0xA0

// ToPETSCII converts native text to the image's internal character encoding.
// Characters in the native printable band (space through underscore) pass
// through unchanged, lowercase letters map to the image's uppercase-only
// representation, and everything else becomes '?'.
func ToPETSCII(s string) []byte {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= ' ' && c <= '_':
			out[i] = c
		case c >= 'a' && c <= 'z':
			out[i] = c - 32
		default:
			out[i] = '?'
		}
	}
	return out
}

// ToASCII converts bytes from the image's internal encoding to native text.
// Bytes in 0x20..0x5F pass through unchanged, the shifted letter range
// 0xC1..0xDA maps down by 0x80, and everything else becomes '?'.
func ToASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		switch {
		case c >= 0x20 && c <= 0x5F:
			out[i] = c
		case c >= 0xC1 && c <= 0xDA:
			out[i] = c - 0x80
		default:
			out[i] = '?'
		}
	}
	return string(out)
}

// trimFill cuts a fixed-width field at its first fill byte. Fields with no
// fill byte use their full width.
func trimFill(b []byte) []byte {
	for i, c := range b {
		if c == FillByte {
			return b[:i]
		}
	}
	return b
}
