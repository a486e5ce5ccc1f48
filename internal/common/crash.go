package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// crashLogDir is where crash reports are written, set by InstallCrashHandler
var crashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Call once at the
// start of main, before any goroutines are spawned.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		crashLogDir = logDir
	}
	if err := os.MkdirAll(crashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "crash: failed to create log directory: %v\n", err)
	}
}

// WriteCrashFile dumps the panic value, all goroutine stacks and runtime
// stats to a timestamped file. Called from panic recovery before exit;
// returns the crash file path, or "" when even that write failed.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	crashPath := filepath.Join(crashLogDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	fmt.Fprintf(&report, "colligo %s crashed at %s\n\n", GetFullVersion(), time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "panic: %v\n\n", panicVal)
	fmt.Fprintf(&report, "--- stack ---\n%s\n", stackTrace)
	fmt.Fprintf(&report, "--- all goroutines ---\n%s\n", allGoroutineStacks())
	fmt.Fprintf(&report, "--- runtime ---\ngoroutines=%d cpus=%d os=%s arch=%s\n",
		runtime.NumGoroutine(), runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)

	if err := os.WriteFile(crashPath, report.Bytes(), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "crash: failed to write crash file: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "\nfatal crash, report saved to %s\npanic: %v\n", crashPath, panicVal)
	return crashPath
}

// allGoroutineStacks captures every goroutine's stack, growing the buffer
// until the dump fits
func allGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
	}
}
