package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/specbook/pkg/models"
)

const sectionSeparator = "================================================================================"

// RunLogger manages the log file for a single migration run. It is created
// per invocation and passed explicitly to whoever needs it; every method is
// safe on a nil receiver so callers can run without a log file at all.
type RunLogger struct {
	runID     string
	logFile   *os.File
	path      string
	mutex     sync.Mutex
	startTime time.Time
}

// StartRunLogging creates the log file for one migration run under dir.
func StartRunLogging(dir, runID string) (*RunLogger, error) {
	timestamp := time.Now().Format("20060102_150405")
	logFileName := fmt.Sprintf("migration_%s_%s.log", runID, timestamp)
	logPath := filepath.Join(dir, logFileName)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &RunLogger{
		runID:     runID,
		logFile:   logFile,
		path:      logPath,
		startTime: time.Now(),
	}
	logger.writeHeader()
	return logger, nil
}

// Path returns the location of the log file.
func (r *RunLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Log writes a message to the run log.
func (r *RunLogger) Log(format string, args ...interface{}) {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	elapsed := time.Since(r.startTime)
	logMessage := fmt.Sprintf(format, args...)

	message := fmt.Sprintf("[%s] [+%v] %s\n", timestamp, elapsed.Round(time.Millisecond), logMessage)
	r.logFile.WriteString(message)
	r.logFile.Sync() // Ensure immediate write
}

// LogSection writes a section header to the log.
func (r *RunLogger) LogSection(title string) {
	if r == nil {
		return
	}

	r.Log(sectionSeparator)
	r.Log("= %s", title)
	r.Log(sectionSeparator)
}

// LogError logs an error with its surrounding context.
func (r *RunLogger) LogError(context string, err error) {
	if r == nil {
		return
	}

	r.Log("ERROR in %s: %v", context, err)
}

// LogOutcome records one thread's migration outcome.
func (r *RunLogger) LogOutcome(outcome *models.MigrationOutcome) {
	if r == nil || outcome == nil {
		return
	}

	root := outcome.Thread.Root
	excerpt := truncateString(strings.ReplaceAll(root.Body, "\n", " "), 80)
	if outcome.Migrated() {
		r.Log("PLACED thread %s (%d messages) %s!%s -> %s!%s strategy=%s body=%q",
			root.ID, outcome.Thread.Size(), root.Sheet, root.Ref,
			outcome.Sheet, outcome.Ref, outcome.Strategy, excerpt)
	} else {
		r.Log("LOST thread %s (%d messages) from %s!%s reason=%s body=%q",
			root.ID, outcome.Thread.Size(), root.Sheet, root.Ref,
			outcome.Failure, excerpt)
	}
	for _, hint := range outcome.SecretHints {
		r.Log("WARNING thread %s body matches secret rule %s", root.ID, hint)
	}
}

// Close finalizes the log file.
func (r *RunLogger) Close() {
	if r == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.logFile != nil {
		// Write final message directly without using r.Log() to avoid deadlock
		timestamp := time.Now().Format("15:04:05.000")
		finalMessage := fmt.Sprintf("[%s] Migration logging completed. Total duration: %v\n",
			timestamp, time.Since(r.startTime).Round(time.Millisecond))
		r.logFile.WriteString(finalMessage)
		r.logFile.Sync()

		r.logFile.Close()
		r.logFile = nil
	}
}

func (r *RunLogger) writeHeader() {
	header := fmt.Sprintf(`SPECBOOK MIGRATION LOG
Run ID: %s
Start Time: %s
Log Format: [HH:MM:SS.mmm] [+duration] message

`, r.runID, r.startTime.Format("2006-01-02 15:04:05"))

	r.logFile.WriteString(header)
	r.logFile.Sync()
}

// truncateString truncates a string to maxLen characters.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
