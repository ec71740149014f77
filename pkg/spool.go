// Package pkg provides utilities shared by the shcov packages.
package pkg

import (
	"bufio"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Spool appends items of type T to a temporary file and replays them in
// order. It keeps unbounded streams out of memory.
type Spool[T any] interface {
	Len() uint64
	Path() string
	Append(item T) error
	Range(fn func(index uint64, item T) error) error
	Close() error
}

type spoolImpl[T any] struct {
	path    string
	file    *os.File
	buffer  *bufio.Writer
	encoder *gob.Encoder
	mu      sync.Mutex
	length  uint64
	closed  bool
}

// ErrSpoolClosed is returned when a closed spool is used.
var ErrSpoolClosed = errors.New("spool is closed")

// NewSpool creates a spool file in dir, or in the default temp directory
// when dir is empty.
func NewSpool[T any](dir string) (Spool[T], error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			slog.Error("failed to create spool directory", "path", dir, "error", err)
			return nil, fmt.Errorf("failed to create spool directory: %w", err)
		}
	}

	file, err := os.CreateTemp(dir, "shcov-spool-*.gob")
	if err != nil {
		slog.Error("failed to create spool file", "path", dir, "error", err)
		return nil, fmt.Errorf("failed to create spool file: %w", err)
	}

	buffer := bufio.NewWriter(file)

	slog.Debug("created spool", "path", file.Name())

	return &spoolImpl[T]{
		path:    file.Name(),
		file:    file,
		buffer:  buffer,
		encoder: gob.NewEncoder(buffer),
	}, nil
}

// Append implements Spool.
func (s *spoolImpl[T]) Append(item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSpoolClosed
	}

	if err := s.encoder.Encode(item); err != nil {
		slog.Error("failed to encode item", "path", s.path, "index", s.length, "error", err)
		return fmt.Errorf("failed to encode item: %w", err)
	}

	s.length++

	return nil
}

// Path implements Spool.
func (s *spoolImpl[T]) Path() string {
	return s.path
}

// Len implements Spool.
func (s *spoolImpl[T]) Len() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.length
}

// Range implements Spool. Items appended by fn are not visited.
func (s *spoolImpl[T]) Range(fn func(index uint64, item T) error) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrSpoolClosed
	}

	if err := s.buffer.Flush(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to flush spool: %w", err)
	}

	length := s.length
	s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		slog.Error("failed to open spool for range", "path", s.path, "error", err)
		return fmt.Errorf("failed to open spool: %w", err)
	}

	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("failed to close spool reader", "path", s.path, "error", err)
		}
	}()

	decoder := gob.NewDecoder(bufio.NewReader(file))

	for i := uint64(0); i < length; i++ {
		var item T
		if err := decoder.Decode(&item); err != nil {
			slog.Error("failed to decode item during range", "path", s.path, "index", i, "error", err)
			return fmt.Errorf("failed to decode item at index %d: %w", i, err)
		}

		if err := fn(i, item); err != nil {
			return err
		}
	}

	slog.Debug("range completed", "path", s.path, "count", length)

	return nil
}

// Close implements Spool. It removes the backing file.
func (s *spoolImpl[T]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	err := errors.Join(s.buffer.Flush(), s.file.Close(), os.Remove(s.path))
	if err != nil {
		slog.Error("failed to close spool", "path", s.path, "error", err)
		return err
	}

	slog.Debug("closed spool", "path", s.path, "length", s.length)

	return nil
}
