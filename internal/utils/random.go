package utils

import (
	"crypto/rand"
	"math/big"
)

const numberBytes = "0123456789"

// GenerateOTP returns the 4-digit pickup verification code issued when a
// ride is created.
func GenerateOTP() string {
	return generateRandom(OTPLength, numberBytes)
}

func generateRandom(length int, charset string) string {
	result := make([]byte, length)
	charsetLength := big.NewInt(int64(len(charset)))

	for i := range result {
		num, _ := rand.Int(rand.Reader, charsetLength)
		result[i] = charset[num.Int64()]
	}

	return string(result)
}
