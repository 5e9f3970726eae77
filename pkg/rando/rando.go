package rando

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const alphaNum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// StrongRandomAlphaNumChars returns n alphanumeric characters from a CSPRNG.
func StrongRandomAlphaNumChars(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i := 0; i < n; i++ {
		buf[i] = alphaNum[int(buf[i])%len(alphaNum)]
	}
	return string(buf)
}

// StrongRandomBytes returns n bytes from a CSPRNG.
func StrongRandomBytes(n int) []byte {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return buf
}

// TempFilename returns a filename inside the OS temp dir that is extremely
// unlikely to collide. ext includes the dot, eg ".mp4"
func TempFilename(ext string) string {
	return filepath.Join(os.TempDir(), strconv.FormatInt(time.Now().UnixNano(), 10)+"-"+StrongRandomAlphaNumChars(8)+ext)
}
