package crypto

import (
	"crypto/rand"
	"math"
)

const (
	idAlphabet string = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	idSize     int    = 22 // 22 * 6 = 132 bits of entropy
)

// NewID generates a URL-safe random identifier. Used for scoped handle IDs
// and local challenge nonces; the values are unguessable but carry no
// secret, so they may be logged.
func NewID() (string, error) {
	mask := idMask(len(idAlphabet))
	step := int(math.Ceil(1.6 * float64(mask*idSize) / float64(len(idAlphabet))))

	id := make([]byte, idSize)
	buffer := make([]byte, step)

	for position := 0; position < idSize; {
		if _, err := rand.Read(buffer); err != nil {
			return "", err
		}

		for i := 0; i < step && position < idSize; i++ {
			// Mask to a candidate index; discard out-of-range bytes so
			// the distribution over the alphabet stays uniform.
			index := buffer[i] & byte(mask)
			if int(index) < len(idAlphabet) {
				id[position] = idAlphabet[index]
				position++
			}
		}
	}

	return string(id), nil
}

func idMask(alphabetLen int) int {
	for i := 1; i <= 8; i++ {
		mask := (2 << uint(i)) - 1
		if mask > alphabetLen-1 {
			return mask
		}
	}
	return 255
}
