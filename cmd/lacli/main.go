//go:build !tinygo

// Command lacli is an interactive terminal front end for the simulated
// analyzer. Captures run in simulated real time while the prompt is open.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"multiprobe/hal"
	"multiprobe/internal/buildinfo"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/services/settings"

	"github.com/peterh/liner"
	"golang.org/x/sync/errgroup"
)

var commands = []string{
	"cancel", "capture", "freq", "help", "load", "mode", "quit",
	"reset", "run", "save", "show", "status", "toggle", "trigger",
}

func main() {
	var (
		freq      = flag.Uint("freq", 0, "Sample frequency in Hz (0 = stored or default).")
		blockSize = flag.Int("block", 4096, "Capture block size in samples.")
		width     = flag.Int("width", 96, "Trace width in columns.")
		flashPath = flag.String("flash", "", "Flash image holding saved settings.")
		period    = flag.Duration("period", 20*time.Millisecond, "Simulation step.")
	)
	flag.Parse()

	if err := run(*freq, *blockSize, *width, *flashPath, *period); err != nil {
		fmt.Fprintln(os.Stderr, "lacli:", err)
		os.Exit(1)
	}
}

func run(freq uint, blockSize, width int, flashPath string, period time.Duration) error {
	s := acq.DefaultSettings()
	var store *settings.Store
	if flashPath != "" {
		f, closer, err := hal.OpenFlashFile(flashPath, 256*1024)
		if err != nil {
			return err
		}
		defer closer.Close()
		if store, err = settings.NewStore(f); err != nil {
			return err
		}
		if s, err = store.LoadOrDefault(); err != nil && !errors.Is(err, settings.ErrNoRecord) {
			fmt.Fprintln(os.Stderr, "lacli: settings:", err)
		}
	}
	if freq != 0 {
		s.SampleFrequency = uint32(freq)
	}

	sess, err := newSession(defaultProbe(), s, blockSize, width, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return sess.loop(ctx, period)
	})
	grp.Go(func() error {
		defer cancel()
		return prompt(ctx, sess)
	})
	return grp.Wait()
}

func prompt(ctx context.Context, sess *session) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, l) {
				out = append(out, c)
			}
		}
		return out
	})

	fmt.Printf("multiprobe lacli %s, type help\n", buildinfo.Short())
	for ctx.Err() == nil {
		in, err := line.Prompt("la> ")
		switch {
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			return nil
		case err != nil:
			return fmt.Errorf("prompt: %w", err)
		}
		if strings.TrimSpace(in) == "" {
			continue
		}
		line.AppendHistory(in)

		out, err := sess.exec(ctx, in)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Println(sess.st.err.Render("error: " + err.Error()))
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
	return nil
}
