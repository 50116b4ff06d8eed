//go:build !tinygo

package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteThenDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.flash")
	o := options{
		path:     path,
		size:     defaultFlashSize,
		freq:     20_000,
		channels: 0b011,
		trigger:  2,
		edge:     "falling",
		position: 10,
		mode:     "single",
	}

	var out bytes.Buffer
	if err := run(&out, o); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "wrote") {
		t.Fatalf("run() output = %q, want a write report", out.String())
	}

	out.Reset()
	if err := run(&out, options{path: path, size: defaultFlashSize, dump: true}); err != nil {
		t.Fatalf("run(dump) error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"20000 Hz", "011", "CH2 falling @10%", "single"} {
		if !strings.Contains(got, want) {
			t.Fatalf("dump output %q missing %q", got, want)
		}
	}
}

func TestDumpEmptyImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.flash")
	var out bytes.Buffer
	if err := run(&out, options{path: path, size: defaultFlashSize, dump: true}); err != nil {
		t.Fatalf("run(dump) error = %v", err)
	}
	if !strings.Contains(out.String(), "no settings record") {
		t.Fatalf("dump output = %q", out.String())
	}
}

func TestRejectsBadOptions(t *testing.T) {
	base := options{
		path:     filepath.Join(t.TempDir(), "probe.flash"),
		size:     defaultFlashSize,
		freq:     1_000_000,
		channels: 0b111,
		edge:     "rising",
		position: 50,
		mode:     "auto",
	}
	for name, mutate := range map[string]func(*options){
		"edge":     func(o *options) { o.edge = "sideways" },
		"mode":     func(o *options) { o.mode = "burst" },
		"freq":     func(o *options) { o.freq = 0 },
		"position": func(o *options) { o.position = 101 },
		"trigger":  func(o *options) { o.trigger = 4 },
	} {
		o := base
		mutate(&o)
		if err := run(&bytes.Buffer{}, o); err == nil {
			t.Fatalf("%s: run() error = nil, want rejection", name)
		}
	}
}
