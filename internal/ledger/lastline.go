package ledger

import (
	"bytes"
	"io"
)

// scanChunk is how many bytes LastLine reads per backward step.
const scanChunk = 4096

// LastLine returns the last non-blank line of the first size bytes of r,
// without its terminator. It reads backwards in fixed chunks, so only the
// tail of a large file is touched; a file smaller than one chunk is read in
// a single call. ok is false when there is no non-blank line.
func LastLine(r io.ReaderAt, size int64) (line string, ok bool, err error) {
	if size <= 0 {
		return "", false, nil
	}

	// tail accumulates bytes from the end of the file, growing leftwards.
	var tail []byte
	end := size
	for end > 0 {
		start := end - scanChunk
		if start < 0 {
			start = 0
		}
		buf := make([]byte, end-start)
		if _, err := r.ReadAt(buf, start); err != nil && err != io.EOF {
			return "", false, err
		}
		tail = append(buf, tail...)
		end = start

		trimmed := bytes.TrimRight(tail, "\r\n\t ")
		if len(trimmed) == 0 {
			continue
		}
		if i := bytes.LastIndexByte(trimmed, '\n'); i >= 0 {
			return string(bytes.TrimRight(trimmed[i+1:], "\r")), true, nil
		}
		if end == 0 {
			return string(trimmed), true, nil
		}
	}
	return "", false, nil
}
