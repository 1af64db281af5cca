package fingerprint

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"mediaorganizer/internal/services"
)

// ChunkSize is the fixed read size fed to the streaming hash.
const ChunkSize = 8192

// Digest is the hex-encoded MD5 of a file's content.
type Digest string

// String returns the hex form.
func (d Digest) String() string { return string(d) }

// Short returns the first eight hex characters for log output.
func (d Digest) Short() string {
	if len(d) <= 8 {
		return string(d)
	}
	return string(d[:8])
}

// File streams the file at path through MD5 in fixed-size chunks. Failures
// wrap services.ErrUnreadable and carry the path and the underlying cause.
func File(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", unreadable(path, "open", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", unreadable(path, "stat", err)
	}
	if info.IsDir() {
		return "", unreadable(path, "stat", fmt.Errorf("is a directory"))
	}

	return Reader(f, path)
}

// Reader hashes r until EOF. path is used only for error context.
func Reader(r io.Reader, path string) (Digest, error) {
	hasher := md5.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hasher, onlyReader{r}, buf); err != nil {
		return "", unreadable(path, "read", err)
	}
	return Digest(hex.EncodeToString(hasher.Sum(nil))), nil
}

// onlyReader hides WriterTo so CopyBuffer honours the fixed chunk size.
type onlyReader struct{ io.Reader }

func unreadable(path, op string, err error) error {
	return services.Wrap(services.ErrUnreadable, "fingerprint", op, path, err)
}
