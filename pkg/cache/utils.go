package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// GenerateKey creates a cache key with prefix and ID.
func GenerateKey(prefix string, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// HashKey generates MD5 hash of a key.
func HashKey(key string) string {
	return HashBytes([]byte(key))
}

// HashBytes generates MD5 hash of raw bytes.
func HashBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
