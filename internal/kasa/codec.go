package kasa

import (
	"encoding/binary"
	"fmt"

	"github.com/dokzlo13/cutelights/internal/light"
)

// initialKey seeds the autokey XOR stream
const initialKey byte = 171

// headerSize is the big-endian length prefix in front of every payload
const headerSize = 4

// Encrypt frames plaintext: 4-byte big-endian length followed by the XOR-chained payload.
// The length prefix itself is not obfuscated.
func Encrypt(plain []byte) []byte {
	out := make([]byte, headerSize+len(plain))
	binary.BigEndian.PutUint32(out, uint32(len(plain)))

	key := initialKey
	for i, p := range plain {
		c := key ^ p
		out[headerSize+i] = c
		key = c
	}
	return out
}

// Decrypt reverses Encrypt. A frame whose body is still shorter than the
// announced length yields the bytes decoded so far; no more than the announced
// length is ever returned.
func Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < headerSize {
		return nil, fmt.Errorf("%w: frame shorter than length prefix (%d bytes)", light.ErrDecode, len(frame))
	}
	length := int(binary.BigEndian.Uint32(frame))
	body := frame[headerSize:]
	if len(body) > length {
		body = body[:length]
	}

	out := make([]byte, len(body))
	key := initialKey
	for i, c := range body {
		out[i] = key ^ c
		key = c
	}
	return out, nil
}
