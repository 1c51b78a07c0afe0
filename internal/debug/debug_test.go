package debug

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreState saves the debug package state and returns a cleanup function
func saveAndRestoreState() func() {
	originalDebug := EnableDebug
	originalMode := MCPMode
	originalOutput := debugOutput
	originalFile := debugFile
	return func() {
		EnableDebug = originalDebug
		MCPMode = originalMode
		debugOutput = originalOutput
		debugFile = originalFile
	}
}

func TestIsDebugEnabled(t *testing.T) {
	defer saveAndRestoreState()()
	t.Setenv("DEBUG", "")

	EnableDebug = "false"
	MCPMode = false
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	assert.True(t, IsDebugEnabled())

	// MCP mode needs a log file
	MCPMode = true
	debugFile = nil
	assert.False(t, IsDebugEnabled())
	assert.True(t, Requested())

	EnableDebug = "false"
	MCPMode = false
	t.Setenv("DEBUG", "1")
	assert.True(t, IsDebugEnabled())
}

func TestLog(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = false
	Log("TEST", "Hello %s", "World")

	output := buf.String()
	assert.Contains(t, output, "[DEBUG:TEST]")
	assert.Contains(t, output, "Hello World")
}

func TestLog_MCPMode(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = true
	Log("TEST", "Should not appear")

	assert.Empty(t, buf.String())
}

func TestLogHelpers(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	MCPMode = false

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		prefix  string
	}{
		{"LogStore", LogStore, "[DEBUG:STORE]"},
		{"LogMatch", LogMatch, "[DEBUG:MATCH]"},
		{"LogBatch", LogBatch, "[DEBUG:BATCH]"},
		{"LogWatch", LogWatch, "[DEBUG:WATCH]"},
		{"LogMCP", LogMCP, "[DEBUG:MCP]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetDebugOutput(&buf)

			tt.logFunc("row %d of %s", 3, "pnp.csv")

			output := buf.String()
			assert.Contains(t, output, tt.prefix)
			assert.Contains(t, output, "row 3 of pnp.csv")
		})
	}
}

func TestConcurrentLogging(t *testing.T) {
	defer saveAndRestoreState()()

	var buf safeBuffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = false

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			LogBatch("row %d\n", id)
		}(i)
	}
	wg.Wait()

	assert.Contains(t, buf.String(), "[DEBUG:BATCH]")
}

func TestNoOutputWithNilWriter(t *testing.T) {
	defer saveAndRestoreState()()

	SetDebugOutput(nil)
	EnableDebug = "true"
	MCPMode = false

	// These should not panic
	Log("TEST", "test %s", "message")
	LogStore("test %s", "message")
	LogMatch("test %s", "message")
}

func TestInitDebugLogFile(t *testing.T) {
	defer saveAndRestoreState()()

	logPath, err := InitDebugLogFile()
	require.NoError(t, err)
	require.NotEmpty(t, logPath)
	defer os.Remove(logPath)

	EnableDebug = "true"
	MCPMode = false
	LogStore("Test log message\n")

	require.NoError(t, CloseDebugLog())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[DEBUG:STORE] Test log message")
}

func TestInitDebugLogFile_MCPMode(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	MCPMode = true
	logPath, err := InitDebugLogFile()
	require.NoError(t, err)
	defer os.Remove(logPath)

	assert.True(t, IsDebugEnabled(), "a log file is a safe sink in MCP mode")
	LogMCP("tool call %s\n", "match_part")

	require.NoError(t, CloseDebugLog())
	assert.False(t, IsDebugEnabled())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[DEBUG:MCP] tool call match_part")
}

func TestFatalAndExit(t *testing.T) {
	defer saveAndRestoreState()()
	originalExit := exit
	defer func() { exit = originalExit }()

	var code int
	exit = func(c int) { code = c }

	logPath, err := InitDebugLogFile()
	require.NoError(t, err)
	defer os.Remove(logPath)

	MCPMode = true // keep the message off the test's stderr
	FatalAndExit("Fatal error: %v\n", "boom")
	require.NoError(t, CloseDebugLog())

	assert.Equal(t, 1, code)
	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[FATAL] Fatal error: boom")
}

type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
