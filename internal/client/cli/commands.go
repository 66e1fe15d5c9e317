package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/properbooky/internal/common"
	"github.com/dmitrijs2005/properbooky/internal/filex"
	"github.com/dmitrijs2005/properbooky/internal/queue"
)

const shortIDLen = 8

var (
	errNoToken     = errors.New("no access token, run 'token' first")
	errAmbiguousID = errors.New("ambiguous id prefix")
	errNoCatalog   = errors.New("catalog unavailable")
	errEmptyToken  = errors.New("empty token")
)

// Token prompts for an access token, verifies it and keeps it for uploads.
func (a *App) Token(ctx context.Context) error {
	secret, err := GetSecret("Access token: ", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(secret)

	token := strings.TrimSpace(string(secret))
	if token == "" {
		return errEmptyToken
	}

	a.tokens.SetToken(token)
	owner, err := a.tokens.OwnerID(ctx)
	if err != nil {
		a.tokens.SetToken("")
		return err
	}
	printlnFn("Signed in as " + owner)
	return nil
}

// Add validates each path and enqueues the files that pass. Rejected files
// are reported one per line; the command itself only fails when nothing
// could be added.
func (a *App) Add(_ context.Context, paths []string) error {
	var files []queue.File
	for _, p := range paths {
		f, err := a.loadFile(p)
		if err != nil {
			printlnFn(fmt.Sprintf("rejected %s: %v", p, err))
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: no files added", common.ErrValidation)
	}

	for _, it := range a.store.Enqueue(files...) {
		printlnFn(fmt.Sprintf("queued %s  %s", shortID(it.ID), it.Source.Name))
	}
	return nil
}

func (a *App) loadFile(path string) (queue.File, error) {
	size, err := filex.Size(path)
	if err != nil {
		return queue.File{}, err
	}
	// Refuse oversized files before reading them into memory.
	if err := a.validator.CheckSize(path, size); err != nil {
		return queue.File{}, err
	}
	f, err := filex.LoadFile(path)
	if err != nil {
		return queue.File{}, err
	}
	if err := a.validator.Validate(f); err != nil {
		return queue.File{}, err
	}
	return f, nil
}

func (a *App) List(_ context.Context) error {
	items := a.store.Snapshot()
	if len(items) == 0 {
		printlnFn("Queue is empty")
		return nil
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tNAME\tERROR")
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\n", shortID(it.ID), it.Status, it.Progress, it.Source.Name, it.Err)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printlnFn(strings.TrimRight(sb.String(), "\n"))
	return nil
}

func (a *App) Remove(_ context.Context, prefix string) error {
	id, err := a.resolveID(prefix)
	if err != nil {
		return err
	}
	if err := a.store.Remove(id); err != nil {
		return err
	}
	printlnFn("removed " + shortID(id))
	return nil
}

func (a *App) Clear(_ context.Context) error {
	if a.orchestrator.Running() {
		return common.ErrDrainInProgress
	}
	if err := a.store.Clear(); err != nil {
		return err
	}
	printlnFn("Queue cleared")
	return nil
}

// Upload drains the queue. Per-file outcomes are reported by the terminal
// notifier while the drain runs.
func (a *App) Upload(ctx context.Context) error {
	if !a.hasToken() {
		return errNoToken
	}
	if a.queuedCount() == 0 {
		printlnFn("Nothing to upload")
		return nil
	}
	_, err := a.orchestrator.Process(ctx)
	return err
}

func (a *App) Retry(_ context.Context, prefix string) error {
	id, err := a.resolveID(prefix)
	if err != nil {
		return err
	}
	it, err := a.store.Requeue(id)
	if err != nil {
		return err
	}
	printlnFn(fmt.Sprintf("queued %s  %s", shortID(it.ID), it.Source.Name))
	return nil
}

func (a *App) Books(ctx context.Context) error {
	if a.catalog == nil {
		return errNoCatalog
	}
	owner, err := a.tokens.OwnerID(ctx)
	if err != nil {
		return err
	}
	books, err := a.catalog.ListBooks(ctx, owner)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		printlnFn("No books yet")
		return nil
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tFORMAT\tSIZE\tADDED")
	for _, b := range books {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.Title, b.Format, b.SizeBytes, b.CreatedAt.Format("2006-01-02 15:04"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printlnFn(strings.TrimRight(sb.String(), "\n"))
	return nil
}

// resolveID accepts a full item id or a unique prefix of one.
func (a *App) resolveID(prefix string) (string, error) {
	var match string
	for _, it := range a.store.Snapshot() {
		if it.ID == prefix {
			return it.ID, nil
		}
		if strings.HasPrefix(it.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("%w: %s", errAmbiguousID, prefix)
			}
			match = it.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", common.ErrNotFound, prefix)
	}
	return match, nil
}

func (a *App) queuedCount() int {
	n := 0
	for _, it := range a.store.Snapshot() {
		if it.Status == queue.StatusQueued {
			n++
		}
	}
	return n
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
