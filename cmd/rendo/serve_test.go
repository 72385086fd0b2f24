package main

import (
	"bufio"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"nyiyui.ca/hato/rendo/config"
	"nyiyui.ca/hato/rendo/journal"
)

func TestServeShutdown(t *testing.T) {
	cfg := config.Default()
	cfg.Station = []string{writeFile(t, yard)}
	cfg.Listen = ""
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serve(ctx, cfg, inR, outW) }()

	go inW.Write([]byte("2131=\n"))
	lines := bufio.NewScanner(outR)
	if !lines.Scan() {
		t.Fatalf("no feedback: %v", lines.Err())
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %s", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve did not return")
	}
	inW.Close()

	j, err := journal.Open(cfg.Journal.Path, 0)
	if err != nil {
		t.Fatalf("reopen journal: %s", err)
	}
	defer j.Close()
	entries, err := j.List(0)
	if err != nil {
		t.Fatalf("List: %s", err)
	}
	if len(entries) != 1 || entries[0].Input != "2131=" {
		t.Fatalf("entries: %v", entries)
	}
}
