package util

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

var logger *slog.Logger

// IsTerminal reports whether stdout is attached to an interactive
// terminal, gating colored output and the spinner the same way the
// teacher's CLI does for its own progress indicators.
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// TerminalWidth returns the current terminal width, or a sane fallback
// when stdout isn't a terminal (piped output, CI logs).
func TerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 80
}

// colorableStdout wraps stdout so ANSI escapes render correctly on
// Windows consoles that don't natively understand them.
func colorableStdout() io.Writer {
	return colorable.NewColorableStdout()
}

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorGreen  = "\033[32m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// PrettyHandler is a custom slog handler that provides colorized, human-readable output
type PrettyHandler struct {
	level slog.Level
	out   io.Writer
	color bool
}

// NewPrettyHandler creates a new PrettyHandler. Color is auto-disabled
// when stdout isn't a terminal, so piped/redirected output stays clean.
func NewPrettyHandler(level slog.Level) *PrettyHandler {
	return &PrettyHandler{level: level, out: colorableStdout(), color: IsTerminal()}
}

// Enabled reports whether the handler handles records at the given level
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats and outputs the log record
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	// Format time as HH:MM:SS
	timeStr := r.Time.Format("15:04:05")

	// Get level color and symbol
	var levelColor, levelStr string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = ColorGray
		levelStr = "DEBUG"
	case slog.LevelInfo:
		levelColor = ColorBlue
		levelStr = "INFO "
	case slog.LevelWarn:
		levelColor = ColorYellow
		levelStr = "WARN "
	case slog.LevelError:
		levelColor = ColorRed
		levelStr = "ERROR"
	default:
		levelColor = ColorReset
		levelStr = "     "
	}

	if !h.color {
		levelColor = ""
	}

	// Format message
	msg := r.Message

	// Collect attributes
	var attrs []string
	r.Attrs(func(a slog.Attr) bool {
		// Format key-value pairs nicely
		value := a.Value.String()
		// Remove quotes from strings for cleaner output
		if strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
			value = strings.Trim(value, `"`)
		}
		keyColor, reset := ColorCyan, ColorReset
		if !h.color {
			keyColor, reset = "", ""
		}
		attrs = append(attrs, fmt.Sprintf("%s=%s", keyColor+a.Key+reset, value))
		return true
	})

	dim, reset := ColorGray, ColorReset
	if !h.color {
		dim, reset = "", ""
	}

	// Build final output
	var output strings.Builder
	output.WriteString(fmt.Sprintf("%s%s%s [%s%s%s] %s",
		dim, timeStr, reset,
		levelColor, levelStr, reset,
		msg))

	// Add attributes if any
	if len(attrs) > 0 {
		output.WriteString(" ")
		output.WriteString(strings.Join(attrs, " "))
	}

	output.WriteString("\n")
	fmt.Fprint(h.out, output.String())
	return nil
}

// WithAttrs returns a new Handler whose attributes consist of both the receiver's attributes and the arguments
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h // For simplicity, not implementing attribute preservation
}

// WithGroup returns a new Handler with the given group appended to the receiver's existing groups
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	return h // For simplicity, not implementing groups
}


// InitLogger initializes the global slog logger with appropriate level
func InitLogger(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler

	// Check if we should use structured logging (for production/server environments)
	if UseStructuredLogging() {
		// Use structured JSON or text handler for production
		opts := &slog.HandlerOptions{Level: level}
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		// Use pretty handler for development
		handler = NewPrettyHandler(level)
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// GetLogger returns the configured logger instance
func GetLogger() *slog.Logger {
	if logger == nil {
		// Fallback initialization with INFO level
		InitLogger(false)
	}
	return logger
}

// IsVerbose checks if verbose mode is enabled by looking at command line arguments
func IsVerbose() bool {
	for _, arg := range os.Args {
		if arg == "--verbose" {
			return true
		}
	}
	return false
}

// UseStructuredLogging determines whether to use structured logging format
// This is useful for production/server environments where logs need to be parsed
func UseStructuredLogging() bool {
	// Check environment variable
	if env := os.Getenv("LOG_FORMAT"); env != "" {
		switch strings.ToLower(env) {
		case "structured":
			return true
		case "pretty":
			return false
		}
	}

	// Check if running in container or CI environment (production indicators)
	if os.Getenv("CONTAINER") != "" ||
		os.Getenv("CI") != "" ||
		os.Getenv("KUBERNETES_SERVICE_HOST") != "" ||
		os.Getenv("DOCKER_CONTAINER") != "" {
		return true
	}

	// Default to pretty logging for local development (including server command)
	return false
}