package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/r3labs/sse/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"nyiyui.ca/hato/rendo/ctl"
	"nyiyui.ca/hato/rendo/kujo"
)

func newConsoleCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Operator console for a running rendo serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			base := addr
			if !strings.Contains(base, "://") {
				base = "http://" + base
			}
			return runTUI(cmd.Context(), base)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8083", "address of rendo serve")
	return cmd
}

type client struct {
	base string
	http *http.Client
}

func (c *client) input(ctx context.Context, text string) ([]ctl.Feedback, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/input", strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("input: %s", resp.Status)
	}
	var fb []ctl.Feedback
	if err := json.NewDecoder(resp.Body).Decode(&fb); err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	return fb, nil
}

func (c *client) state(ctx context.Context) (ctl.StateSnapshot, error) {
	var s ctl.StateSnapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/state", nil)
	if err != nil {
		return s, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return s, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("state: %s", resp.Status)
	}
	return s, json.NewDecoder(resp.Body).Decode(&s)
}

// formatState renders a snapshot for the console's state pane.
func formatState(s ctl.StateSnapshot) string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "routes (%d):\n", len(s.Routes))
	for _, r := range s.Routes {
		releasing := ""
		if r.Releasing {
			releasing = " releasing"
		}
		fmt.Fprintf(b, "  %-12s %-12s %s%s\n", r.Name, r.State, strings.Join(r.Points, " "), releasing)
	}
	fmt.Fprintf(b, "locks (%d):", len(s.Locks))
	for _, l := range s.Locks {
		committed := ""
		if !l.Committed {
			committed = "?"
		}
		fmt.Fprintf(b, " %d%s%s", l.Point, l.Position, committed)
	}
	b.WriteString("\n")
	return b.String()
}

func runTUI(ctx context.Context, base string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c := &client{base: base, http: &http.Client{Timeout: 10 * time.Second}}

	app := tview.NewApplication()
	stateView := tview.NewTextView()
	stateView.SetBorder(true).SetTitle("state")
	logView := tview.NewTextView().SetScrollable(true)
	logView.SetBorder(true).SetTitle("feedback")
	inputField := tview.NewInputField().SetLabel("> ")
	inputField.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := inputField.GetText()
		inputField.SetText("")
		go func() {
			if _, err := c.input(ctx, text); err != nil {
				app.QueueUpdateDraw(func() { fmt.Fprintf(logView, "error: %s\n", err) })
			}
		}()
	})
	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(stateView, 0, 2, false).
		AddItem(logView, 0, 3, false).
		AddItem(inputField, 1, 0, true)

	s, err := c.state(ctx)
	if err != nil {
		return err
	}
	stateView.SetText(formatState(s))

	events := sse.NewClient(base + "/events")
	go func() {
		err := events.SubscribeWithContext(ctx, kujo.StreamState, func(msg *sse.Event) {
			var s ctl.StateSnapshot
			if err := json.Unmarshal(msg.Data, &s); err != nil {
				zap.S().Warnw("console: state", "err", err)
				return
			}
			app.QueueUpdateDraw(func() { stateView.SetText(formatState(s)) })
		})
		if err != nil && ctx.Err() == nil {
			zap.S().Warnw("console: state stream", "err", err)
		}
	}()
	go func() {
		err := events.SubscribeWithContext(ctx, kujo.StreamFeedback, func(msg *sse.Event) {
			var f ctl.Feedback
			if err := json.Unmarshal(msg.Data, &f); err != nil {
				zap.S().Warnw("console: feedback", "err", err)
				return
			}
			app.QueueUpdateDraw(func() {
				fmt.Fprintf(logView, "%s %s\n", f.Time.Format("15:04:05"), formatFeedback(f))
				logView.ScrollToEnd()
			})
		})
		if err != nil && ctx.Err() == nil {
			zap.S().Warnw("console: feedback stream", "err", err)
		}
	}()
	return app.SetRoot(layout, true).Run()
}

func formatFeedback(f ctl.Feedback) string {
	switch {
	case f.Error != "":
		return f.Command + ": " + f.Error
	case f.Message != "":
		return f.Command + ": " + f.Message
	}
	return f.Command + ": ok"
}
