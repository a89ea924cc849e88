// Package history is the append-only iteration journal: one
// self-contained JSON line per iteration, written with fsync-before-return
// so a crash immediately after Append cannot lose a record.
package history

import (
	"bufio"
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"github.com/paicy-t/stratloop/internal/atomicfile"
	"github.com/paicy-t/stratloop/internal/types"
)

// History is an open handle onto one stream's journal file.
type History struct {
	log    *atomicfile.AppendLog
	logger *zap.Logger
}

// Open opens (creating if necessary) the journal at path.
func Open(path string, logger *zap.Logger) (*History, error) {
	log, err := atomicfile.OpenAppendLog(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &History{log: log, logger: logger}, nil
}

// Append writes one iteration record.
func (h *History) Append(rec types.IterationRecord) error {
	return h.log.Append(rec)
}

// Close releases the underlying file handle.
func (h *History) Close() error {
	return h.log.Close()
}

// LoadAll reads every well-formed record from path in file order, skipping
// and logging any line that fails to parse rather than aborting the load.
func LoadAll(path string, logger *zap.Logger) ([]types.IterationRecord, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []types.IterationRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec types.IterationRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("history: skipping malformed journal line",
				zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}

// Tail returns the last n records from path (fewer if the journal is
// shorter), preserving file order.
func Tail(path string, n int, logger *zap.Logger) ([]types.IterationRecord, error) {
	all, err := LoadAll(path, logger)
	if err != nil {
		return nil, err
	}
	if n >= len(all) {
		return all, nil
	}
	return all[len(all)-n:], nil
}
