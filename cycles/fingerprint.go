package cycles

import (
	"encoding/binary"
	"encoding/hex"
	"os"

	"github.com/cespare/xxhash/v2"
)

// Fingerprinter produces a content fingerprint for a file path. The default
// implementation reads from the filesystem; tests inject a fake.
type Fingerprinter interface {
	Fingerprint(path string) (string, error)
}

// fileFingerprinter hashes file contents with xxHash. Non-cryptographic but
// ideal for change detection (10-30x faster than SHA256).
type fileFingerprinter struct{}

// NewFileFingerprinter returns a Fingerprinter backed by the filesystem.
func NewFileFingerprinter() Fingerprinter {
	return fileFingerprinter{}
}

func (fileFingerprinter) Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	h := xxhash.Sum64(data)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h)
	return hex.EncodeToString(buf[:]), nil
}
