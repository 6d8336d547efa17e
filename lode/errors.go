// Package lode persists coverage reports through Lode stores (filesystem,
// S3, or in-memory for tests).
//
// This file classifies storage failures so the report-write diagnostic
// names the cause (permissions, disk, credentials, ...) and callers can use
// errors.Is/errors.As instead of string matching.
package lode

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for storage failure classification.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrDiskFull         = errors.New("no space left on device")
	ErrTimeout          = errors.New("operation timed out")
	ErrThrottled        = errors.New("rate limited")
	ErrAuth             = errors.New("authentication failed")
	ErrAccessDenied     = errors.New("access denied")
	ErrNetwork          = errors.New("network error")

	// errUnclassified is the kind of anything the table does not recognise.
	errUnclassified = errors.New("storage error")
)

// StorageError wraps an underlying error with storage classification.
type StorageError struct {
	// Kind is the sentinel for classification (e.g. ErrPermissionDenied).
	Kind error
	// Op is the operation that failed: "init", "write" or "read".
	Op string
	// Path is the storage path or bucket involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the classification sentinel.
func (e *StorageError) Is(target error) bool { return errors.Is(e.Kind, target) }

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// WrapWriteError classifies a write failure. Returns nil if err is nil.
func WrapWriteError(err error, path string) error { return wrap("write", path, err) }

// WrapReadError classifies a read failure. Returns nil if err is nil.
func WrapReadError(err error, path string) error { return wrap("read", path, err) }

// WrapInitError classifies a store initialization failure. Returns nil if err is nil.
func WrapInitError(err error, target string) error { return wrap("init", target, err) }

// classification rules, checked in order. The first rule with a matching
// pattern wins, so access-denied precedes the broader permission rule.
var rules = []struct {
	kind     error
	patterns []string
}{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces", "access denied"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized"}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable",
		"dns", "dial tcp"}},
}

// classifyError returns the sentinel describing err.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	for _, r := range rules {
		for _, p := range r.patterns {
			if strings.Contains(msg, p) {
				return r.kind
			}
		}
	}
	return errUnclassified
}
