package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/pnpmatch/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks if we're running as an MCP stdio server (set by main)
var MCPMode = false

// debugOutput is the writer for debug output (defaults to nil, meaning no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

// debugMutex protects access to debug output
var debugMutex sync.Mutex

// SetMCPMode enables MCP mode which suppresses all debug output to stdio
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile initializes debug logging to a file.
// Returns the path to the log file, or an error if initialization fails.
// Call CloseDebugLog when done to ensure the file is properly closed.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "pnpmatch-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02T150405")
	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", timestamp))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// Requested reports whether debug output was asked for, by build flag or
// DEBUG=1, regardless of MCP mode.
func Requested() bool {
	if EnableDebug == "true" {
		return true
	}

	// Allow runtime override via environment variable
	return os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true"
}

// IsDebugEnabled returns true if debug mode is enabled. In MCP mode stdio
// carries the protocol, so debug output is only written to a log file.
func IsDebugEnabled() bool {
	if !Requested() {
		return false
	}
	if MCPMode {
		debugMutex.Lock()
		defer debugMutex.Unlock()
		return debugFile != nil
	}
	return true
}

func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	return debugOutput
}

// Log provides structured debug logging with component names
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG:%s] "+format, append([]interface{}{component}, args...)...)
}

// LogStore logs component database loading and saving
func LogStore(format string, args ...interface{}) {
	Log("STORE", format, args...)
}

// LogMatch logs per-pair matcher decisions
func LogMatch(format string, args ...interface{}) {
	Log("MATCH", format, args...)
}

// LogBatch logs batch runs and recovered row failures
func LogBatch(format string, args ...interface{}) {
	Log("BATCH", format, args...)
}

// LogWatch logs file watcher activity
func LogWatch(format string, args ...interface{}) {
	Log("WATCH", format, args...)
}

// LogMCP logs MCP tool calls
func LogMCP(format string, args ...interface{}) {
	Log("MCP", format, args...)
}

// exit is replaced in tests
var exit = os.Exit

// FatalAndExit reports a catastrophic error and exits with status 1 (for CLI
// use only). The message goes to the debug log when one is open and to
// stderr unless in MCP mode.
func FatalAndExit(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)

	debugMutex.Lock()
	if debugFile != nil {
		fmt.Fprintf(debugFile, "[FATAL] %s", msg)
	}
	debugMutex.Unlock()

	if !MCPMode {
		fmt.Fprint(os.Stderr, msg)
	}
	exit(1)
}
