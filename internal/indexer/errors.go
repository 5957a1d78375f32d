// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexer

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned when a lookup or aggregation yields no data.
var ErrNotFound = errors.New("not found")

// ConnectivityError reports a transport-level failure reaching a backend, or a
// failed construction-time probe.
type ConnectivityError struct {
	Indexer string
	URL     string
	Err     error
}

func (e *ConnectivityError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: unable to reach %s", e.Indexer, e.URL)
	}
	return fmt.Sprintf("%s: unable to reach %s: %v", e.Indexer, e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

func (e *ConnectivityError) Is(target error) bool {
	_, ok := target.(*ConnectivityError)
	return ok
}

// TimeoutError reports that an operation exceeded its deadline. It is kept
// separate from ConnectivityError so callers can tell a slow backend from an
// unreachable one.
type TimeoutError struct {
	Indexer string
	Op      string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: %s timed out: %v", e.Indexer, e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Is(target error) bool {
	_, ok := target.(*TimeoutError)
	return ok
}

// RemoteError is a non-2xx response to an operational request.
type RemoteError struct {
	Indexer    string
	URL        string
	StatusCode int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s returned %d %s", e.Indexer, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Detail is the short form stored on failed search responses.
func (e *RemoteError) Detail() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *RemoteError) Is(target error) bool {
	_, ok := target.(*RemoteError)
	return ok
}

// MalformedEntryError describes a remote entry that could not be normalized.
type MalformedEntryError struct {
	Indexer string
	EntryID string
	Field   string
	Reason  string
}

func (e *MalformedEntryError) Error() string {
	id := e.EntryID
	if id == "" {
		id = "<none>"
	}
	return fmt.Sprintf("%s: malformed entry %s: field %q %s", e.Indexer, id, e.Field, e.Reason)
}

func (e *MalformedEntryError) Is(target error) bool {
	_, ok := target.(*MalformedEntryError)
	return ok
}

// UnsupportedOperationError is returned when a backend is asked for something
// it does not implement. It always indicates a configuration or programming
// error.
type UnsupportedOperationError struct {
	Indexer string
	Op      string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("%s: %s is not supported", e.Indexer, e.Op)
}

func (e *UnsupportedOperationError) Is(target error) bool {
	_, ok := target.(*UnsupportedOperationError)
	return ok
}

// MissingParameterError is returned by BuildURL for an unbound placeholder.
type MissingParameterError struct {
	Name string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing value for url parameter %q", e.Name)
}

func (e *MissingParameterError) Is(target error) bool {
	_, ok := target.(*MissingParameterError)
	return ok
}
