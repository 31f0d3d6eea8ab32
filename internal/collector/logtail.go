package collector

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// ReadLastLines returns up to n complete lines from the end of a log file,
// oldest first. The file is read backwards in blocks, so large logs are cheap.
func ReadLastLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	const blockSize = 4096
	var tail []byte
	position := stat.Size()

	// n lines need n+1 newlines unless the start of the file is reached
	for position > 0 && bytes.Count(tail, []byte{'\n'}) <= n {
		readSize := int64(blockSize)
		if readSize > position {
			readSize = position
		}
		position -= readSize

		buf := make([]byte, readSize)
		if _, err := file.ReadAt(buf, position); err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading block: %w", err)
		}
		tail = append(buf, tail...)
	}

	raw := bytes.Split(bytes.TrimRight(tail, "\r\n"), []byte{'\n'})
	if position > 0 && len(raw) > 0 {
		raw = raw[1:] // first entry may be cut mid-line
	}
	if len(raw) > n {
		raw = raw[len(raw)-n:]
	}

	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		if len(line) > 0 {
			lines = append(lines, string(bytes.TrimRight(line, "\r")))
		}
	}
	return lines, nil
}
