package builder

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// recordOverhead approximates the slice header kept per record.
const recordOverhead = 24

// shardCollector gathers the records of one shard, spilling them to a temp
// file when the tracker says memory is tight.
type shardCollector struct {
	shardID     int
	records     [][]byte
	memoryBytes int64
	tempDir     string
	spillPath   string
	spilled     int
	tracker     *memoryTracker
}

func newShardCollector(shardID int, tempDir string, tracker *memoryTracker) *shardCollector {
	return &shardCollector{shardID: shardID, tempDir: tempDir, tracker: tracker}
}

// Add stores a copy of record.
func (c *shardCollector) Add(record []byte) error {
	c.records = append(c.records, append([]byte(nil), record...))
	size := int64(len(record) + recordOverhead)
	c.memoryBytes += size
	c.tracker.add(size)

	if c.tracker.overLimit() {
		if err := c.tracker.spill(); err != nil {
			return fmt.Errorf("spilling to disk: %w", err)
		}
	}
	return nil
}

// Count returns the number of records held in memory and on disk.
func (c *shardCollector) Count() int {
	return len(c.records) + c.spilled
}

// spillToDisk appends the in-memory records to the shard's spill file as
// length-prefixed frames.
func (c *shardCollector) spillToDisk() error {
	if len(c.records) == 0 {
		return nil
	}
	path := filepath.Join(c.tempDir, fmt.Sprintf("shard_%05d.tmp", c.shardID))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening spill file: %w", err)
	}

	w := bufio.NewWriter(file)
	var prefix [4]byte
	for _, r := range c.records {
		binary.BigEndian.PutUint32(prefix[:], uint32(len(r)))
		if _, err := w.Write(prefix[:]); err != nil {
			file.Close()
			return err
		}
		if _, err := w.Write(r); err != nil {
			file.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}

	c.tracker.remove(c.memoryBytes)
	c.spillPath = path
	c.spilled += len(c.records)
	c.records = nil
	c.memoryBytes = 0
	return nil
}

// GetAll returns the spilled records followed by the in-memory ones.
func (c *shardCollector) GetAll() ([][]byte, error) {
	all := make([][]byte, 0, c.Count())
	if c.spillPath != "" {
		file, err := os.Open(c.spillPath)
		if err != nil {
			return nil, fmt.Errorf("opening spill file: %w", err)
		}
		defer file.Close()

		r := bufio.NewReader(file)
		var prefix [4]byte
		for {
			if _, err := io.ReadFull(r, prefix[:]); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, fmt.Errorf("reading spill frame: %w", err)
			}
			record := make([]byte, binary.BigEndian.Uint32(prefix[:]))
			if _, err := io.ReadFull(r, record); err != nil {
				return nil, fmt.Errorf("reading spill frame: %w", err)
			}
			all = append(all, record)
		}
	}
	return append(all, c.records...), nil
}

// memoryTracker sums the memory held by all collectors.
type memoryTracker struct {
	mu         sync.Mutex
	totalBytes int64
	maxBytes   int64
	collectors []*shardCollector
}

func newMemoryTracker(maxMB int) *memoryTracker {
	return &memoryTracker{maxBytes: int64(maxMB) * 1024 * 1024}
}

func (m *memoryTracker) add(n int64) {
	m.mu.Lock()
	m.totalBytes += n
	m.mu.Unlock()
}

func (m *memoryTracker) remove(n int64) {
	m.mu.Lock()
	m.totalBytes -= n
	m.mu.Unlock()
}

func (m *memoryTracker) overLimit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes > m.maxBytes
}

// spill writes the largest collectors to disk until usage is under the
// limit.
func (m *memoryTracker) spill() error {
	spilled := 0
	for m.overLimit() {
		var largest *shardCollector
		for _, c := range m.collectors {
			if len(c.records) > 0 && (largest == nil || c.memoryBytes > largest.memoryBytes) {
				largest = c
			}
		}
		if largest == nil {
			break
		}
		if err := largest.spillToDisk(); err != nil {
			return err
		}
		spilled++
	}
	if spilled > 0 {
		runtime.GC()
	}
	return nil
}
