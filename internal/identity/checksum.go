package identity

import "strconv"

// Checksum digests a credential into the stored form: a 31-multiplier
// rolling checksum over the UTF-16-ish code points, wrapped to 32 bits
// and rendered base-36. This is deliberately NOT a cryptographic hash
// and must not be treated as one; it only keeps the raw credential out
// of the user directory.
func Checksum(credential string) string {
	var h int32
	for _, r := range credential {
		h = h*31 + int32(r)
	}
	return strconv.FormatUint(uint64(uint32(h)), 36)
}
