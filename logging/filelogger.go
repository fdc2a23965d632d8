// Package logging persists per-run raw event streams and assembled reports
// under a directory keyed by the analysis run ID.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/flakewatch/flakewatch/runner"
)

// RunDirectoryPrefix is the standardized prefix for analysis run directories.
const RunDirectoryPrefix = "testrun-"

// FileLogger writes raw run event streams and report artifacts for one
// analysis run. Each engine run gets its own events file so a post-hoc
// debugging session can replay exactly what the runner emitted.
type FileLogger struct {
	baseDir string
	logDir  string
	runsDir string
	runID   string
	mu      sync.Mutex
}

// NewFileLogger creates the run directory layout under baseDir:
//
//	<baseDir>/testrun-<runID>/
//	  runs/run-<index>.events.jsonl
//	  report.md
//	  report.json
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	runsDir := filepath.Join(logDir, "runs")

	for _, dir := range []string{baseDir, logDir, runsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return &FileLogger{
		baseDir: baseDir,
		logDir:  logDir,
		runsDir: runsDir,
		runID:   runID,
	}, nil
}

// Dir returns the root directory of this analysis run's artifacts.
func (l *FileLogger) Dir() string {
	return l.logDir
}

// OpenRun creates the raw event log for one engine run. The returned writer
// is asynchronous so event persistence never backpressures stream parsing.
func (l *FileLogger) OpenRun(runIndex int) (io.WriteCloser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.runsDir, fmt.Sprintf("run-%d.events.jsonl", runIndex))
	return NewAsyncFile(path)
}

// SaveReport writes one named report artifact into the run directory.
func (l *FileLogger) SaveReport(name string, data []byte) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.logDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", name, err)
	}
	return path, nil
}

// AsyncFile provides non-blocking file writing capabilities.
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes.
func NewAsyncFile(filepath string) (*AsyncFile, error) {
	file, err := os.Create(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", filepath, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100), // Buffer channel to reduce blocking
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously.
func (af *AsyncFile) Write(data []byte) (int, error) {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return 0, fmt.Errorf("async file is closed")
	}

	// Copy before queueing; the caller may reuse its buffer.
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	af.queue <- dataCopy
	return len(data), nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file after all queued writes
// have been flushed.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

var _ runner.RunLogStore = (*FileLogger)(nil)
