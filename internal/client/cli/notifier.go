package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/properbooky/internal/uploader"
)

// progressStep is the smallest progress change worth a new line.
const progressStep = 10

// terminalNotifier prints upload notifications as plain lines. Progress is
// throttled to progressStep increments per item.
type terminalNotifier struct {
	mu   sync.Mutex
	w    io.Writer
	last map[string]int
}

func newTerminalNotifier(w io.Writer) *terminalNotifier {
	return &terminalNotifier{w: w, last: make(map[string]int)}
}

// Show carries new messages: item start, batch failures and the summary.
func (n *terminalNotifier) Show(_ context.Context, id string, nt uploader.Notification) error {
	return n.print(id, nt, true)
}

// Update carries item progress and the item's final state.
func (n *terminalNotifier) Update(_ context.Context, id string, nt uploader.Notification) error {
	return n.print(id, nt, false)
}

func (n *terminalNotifier) Dismiss(_ context.Context, id string) error {
	n.mu.Lock()
	delete(n.last, id)
	n.mu.Unlock()
	return nil
}

func (n *terminalNotifier) print(id string, nt uploader.Notification, fresh bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var err error
	switch nt.Level {
	case uploader.LevelProgress:
		prev, seen := n.last[id]
		if seen && nt.Progress-prev < progressStep {
			return nil
		}
		n.last[id] = nt.Progress
		_, err = fmt.Fprintf(n.w, "  %-40s %3d%%\n", nt.Title, nt.Progress)
	case uploader.LevelSuccess:
		delete(n.last, id)
		if id == uploader.BatchNoticeID {
			_, err = fmt.Fprintf(n.w, "%s: %s\n", nt.Title, nt.Message)
		} else {
			_, err = fmt.Fprintf(n.w, "  %-40s done\n", nt.Title)
		}
	case uploader.LevelError:
		delete(n.last, id)
		if fresh {
			_, err = fmt.Fprintf(n.w, "! %s: %s\n", nt.Title, nt.Message)
		} else {
			_, err = fmt.Fprintf(n.w, "  %-40s failed\n", nt.Title)
		}
	default:
		_, err = fmt.Fprintf(n.w, "%s: %s\n", nt.Title, nt.Message)
	}
	return err
}
