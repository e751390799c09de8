package utils

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
)

// FileHash calculates the SHA-1 hash of a file's contents.
func FileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha1.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}
