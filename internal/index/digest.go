package index

import (
	"encoding/hex"
	"sort"
	"strconv"

	"golang.org/x/crypto/blake2b"

	"github.com/nao1215/ftpvista/internal/model"
)

// Digest returns a hex BLAKE2b-256 digest of a file set. The order of
// files does not matter.
func Digest(files []model.FileRecord) string {
	sorted := make([]model.FileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h, err := blake2b.New256(nil)
	if err != nil {
		// Only a key longer than 64 bytes makes New256 fail.
		panic(err)
	}

	buf := make([]byte, 0, 128)
	for _, f := range sorted {
		buf = buf[:0]
		buf = append(buf, f.Path...)
		buf = append(buf, 0)
		buf = strconv.AppendInt(buf, f.Size, 10)
		buf = append(buf, 0)
		if f.Modified != nil {
			buf = strconv.AppendInt(buf, f.Modified.Unix(), 10)
		}
		buf = append(buf, '\n')
		_, _ = h.Write(buf)
	}

	return hex.EncodeToString(h.Sum(nil))
}
