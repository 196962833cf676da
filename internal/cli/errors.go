package cli

import (
	"errors"
	"fmt"

	"github.com/roach88/namedb/internal/config"
	"github.com/roach88/namedb/internal/store"
)

// CLI-level error codes; storage failures use the store's own codes.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeInvalidConfig   = "INVALID_CONFIG"
	CodeInternal        = "INTERNAL"
)

// fail reports err through f and returns the matching ExitError.
func fail(f *OutputFormatter, err error) error {
	code := errorCode(err)
	_ = f.Error(code, err.Error())
	return WrapExitError(ExitCommandError, code, err)
}

// noChange reports that no record matched id.
func noChange(f *OutputFormatter, id int64) error {
	msg := fmt.Sprintf("no record with id %d", id)
	_ = f.Error(CodeNotFound, msg)
	return NewExitError(ExitNoChange, msg)
}

// badArgs reports invalid command arguments.
func badArgs(f *OutputFormatter, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	_ = f.Error(CodeInvalidArgument, msg)
	return NewExitError(ExitCommandError, msg)
}

func errorCode(err error) string {
	if code := store.CodeOf(err); code != "" {
		return string(code)
	}
	if errors.Is(err, config.ErrInvalidConfig) {
		return CodeInvalidConfig
	}
	return CodeInternal
}
