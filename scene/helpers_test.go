// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package scene

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/prims"
	"github.com/gogpu/prims/internal/haltest"
	"github.com/gogpu/prims/surface"
)

const testSurface = "scene-test"

// spyTarget records the calls Render makes without touching a device.
type spyTarget struct {
	calls  []string
	draws  []prims.DrawRequest
	failOn string
	err    error
}

func (s *spyTarget) fail(call string) error {
	s.calls = append(s.calls, call)
	if call == s.failOn {
		return s.err
	}
	return nil
}

func (s *spyTarget) Clear(gputypes.Color) error {
	return s.fail("clear")
}

func (s *spyTarget) BuildProgram(_, _ string) (*prims.Program, error) {
	if err := s.fail("build"); err != nil {
		return nil, err
	}
	return new(prims.Program), nil
}

func (s *spyTarget) Upload(label string, _ []float32) (*prims.GeometryBuffer, error) {
	if err := s.fail("upload " + label); err != nil {
		return nil, err
	}
	return new(prims.GeometryBuffer), nil
}

func (s *spyTarget) Draw(req prims.DrawRequest) (prims.DrawResult, error) {
	if err := s.fail(fmt.Sprintf("draw %s %d", req.Mode, req.Count)); err != nil {
		return prims.DrawResult{}, err
	}
	s.draws = append(s.draws, req)
	return prims.DrawResult{Mode: req.Mode, Count: req.Count, PointSize: req.PointSize}, nil
}

// newRecorder opens a recording device and a private registry holding
// testSurface.
func newRecorder(t *testing.T) (*haltest.Recorder, *surface.Registry) {
	t.Helper()
	rec, err := haltest.New()
	if err != nil {
		t.Fatalf("haltest.New() error = %v", err)
	}
	t.Cleanup(rec.Close)

	reg := surface.NewRegistry()
	if err := reg.Register(testSurface, surface.Descriptor{Width: 64, Height: 48}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return rec, reg
}

// captureHandler is a slog.Handler that keeps every record.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.records = append(h.records, r)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) level(level slog.Level) []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == level {
			out = append(out, r)
		}
	}
	return out
}

func captureLogs(t *testing.T) *captureHandler {
	t.Helper()
	orig := prims.Logger()
	h := &captureHandler{}
	prims.SetLogger(slog.New(h))
	t.Cleanup(func() { prims.SetLogger(orig) })
	return h
}

// attr returns the value of key on r, descending into groups with a
// dotted key.
func attr(r slog.Record, key string) (slog.Value, bool) {
	var (
		val   slog.Value
		found bool
	)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			val, found = a.Value, true
			return false
		}
		if a.Value.Kind() == slog.KindGroup {
			for _, g := range a.Value.Group() {
				if a.Key+"."+g.Key == key {
					val, found = g.Value, true
					return false
				}
			}
		}
		return true
	})
	return val, found
}
