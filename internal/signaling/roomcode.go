package signaling

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 6

// roomCodeAlphabet omits characters that are easy to confuse when read aloud
// or typed (0/O, 1/I/L).
const roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var (
	ErrInvalidRoomCode   = errors.New("invalid room code")
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrClosed            = errors.New("signaling connection closed")
)

// NormalizeRoomCode upper-cases code and checks that it is exactly six ASCII
// letters or digits.
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(code)
	if len(code) != RoomCodeLength {
		return "", ErrInvalidRoomCode
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return "", ErrInvalidRoomCode
		}
	}
	return code, nil
}

// GenerateRoomCode returns a random room code drawn from an unambiguous
// alphabet.
func GenerateRoomCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for range RoomCodeLength {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
