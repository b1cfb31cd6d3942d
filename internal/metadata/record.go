package metadata

import "encoding/binary"

// encodeRecord packs an etag (a hex-rendered monotone sequence number,
// always <= 16 bytes of hex digits) and the value bytes into one bbolt
// value: [2-byte etag length][etag][payload]. Keeping etag alongside the
// payload in one bucket value avoids a second bucket/round trip per read.
func encodeRecord(etag string, payload []byte) []byte {
	etagBytes := []byte(etag)
	buf := make([]byte, 2+len(etagBytes)+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(etagBytes)))
	copy(buf[2:2+len(etagBytes)], etagBytes)
	copy(buf[2+len(etagBytes):], payload)
	return buf
}

func decodeRecord(raw []byte) (etag string, payload []byte) {
	if len(raw) < 2 {
		return "", nil
	}
	etagLen := int(binary.BigEndian.Uint16(raw[0:2]))
	if 2+etagLen > len(raw) {
		return "", nil
	}
	etag = string(raw[2 : 2+etagLen])
	payload = append([]byte(nil), raw[2+etagLen:]...)
	return etag, payload
}
