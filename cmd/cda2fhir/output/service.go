package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// MetricsFile is the prometheus textfile written next to the ndjson files.
const MetricsFile = "metrics.prom"

// OutputManager owns the output directory: one ndjson file per resource type
// and a log file per run under logs/.
type OutputManager struct {
	baseDir   string
	timestamp string
	log       zerolog.Logger
	logFile   *os.File
}

// NewOutputManager creates baseDir and its logs directory. The returned
// manager logs to console and to logs/cda2fhir_<timestamp>.log.
func NewOutputManager(baseDir string, console io.Writer, level zerolog.Level) (*OutputManager, error) {
	timestamp := time.Now().Format("20060102_150405")

	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	// Create logs directory
	logsDir := filepath.Join(baseDir, "logs")
	if err := os.MkdirAll(logsDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	// Set up log file
	logFile, err := os.Create(filepath.Join(logsDir, fmt.Sprintf("cda2fhir_%s.log", timestamp)))
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	// Create new logger that writes to both console and file
	consoleWriter := zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
		w.Out = console
	})
	multiWriter := zerolog.MultiLevelWriter(consoleWriter, logFile)

	combinedLogger := zerolog.New(multiWriter).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	return &OutputManager{
		baseDir:   baseDir,
		timestamp: timestamp,
		log:       combinedLogger,
		logFile:   logFile,
	}, nil
}

// GetLogger returns the configured logger
func (om *OutputManager) GetLogger() zerolog.Logger {
	return om.log
}

// GetOutputPath returns the full path for a given filename
func (om *OutputManager) GetOutputPath(filename string) string {
	return filepath.Join(om.baseDir, filename)
}

// ResourcePath returns the ndjson file of a resource type.
func (om *OutputManager) ResourcePath(resourceType string) string {
	return om.GetOutputPath(resourceType + ".ndjson")
}

// GetTimestamp returns the timestamp being used
func (om *OutputManager) GetTimestamp() string {
	return om.timestamp
}

// GetBaseDir returns the base output directory
func (om *OutputManager) GetBaseDir() string {
	return om.baseDir
}

// Close flushes and closes the run log file.
func (om *OutputManager) Close() error {
	if om.logFile == nil {
		return nil
	}
	if err := om.logFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync log file: %w", err)
	}
	return om.logFile.Close()
}
