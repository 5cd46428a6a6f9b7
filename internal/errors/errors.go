package errors

import (
	"errors"
	"fmt"
	"os"

	"github.com/julianstephens/estimator/internal/logger"
)

var (
	// ErrNotInitialized is returned when storage has not been created yet
	ErrNotInitialized = errors.New("storage not initialized, run 'estimator init' first")
	// ErrUnsupportedBackend is returned when a command needs a capability the backend lacks
	ErrUnsupportedBackend = errors.New("operation not supported by this storage backend")
	// ErrNoEstimate is returned when a command requires --estimate
	ErrNoEstimate = errors.New("an estimate id is required (use --estimate)")
	// ErrCatalogUnavailable is returned when neither an API nor a seed workbook is configured
	ErrCatalogUnavailable = errors.New("no catalog configured (set --api-url or --catalog-seed)")
)

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
