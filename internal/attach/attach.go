// Package attach binds files from the export's attachment folder to table
// rows. The folder holds one subfolder per record key; every file below a
// subfolder is attached to the rows whose join column equals that key.
package attach

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cameo/internal/config"
	"cameo/internal/storage"
)

// Logger is the minimal logging interface used here. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, v ...any)
}

// TableResult is the outcome for one attachment-bearing table.
type TableResult struct {
	Table string
	storage.AttachResult
}

// Report is what Link did.
type Report struct {
	RootMissing bool
	Bindings    int
	Tables      []TableResult
	// Skipped lists declared tables absent from the workspace.
	Skipped []string
}

// Linker attaches files and then removes the attachment folder.
type Linker struct {
	Logger Logger
	// KeepRoot leaves the attachment folder on disk.
	KeepRoot bool
}

func (l *Linker) logger() func(format string, v ...any) {
	if l == nil || l.Logger == nil {
		return log.New(io.Discard, "", 0).Printf
	}
	return l.Logger.Printf
}

// Link binds the files under root to every declared table that exists in ws,
// then deletes root. A missing root is a warning, not an error.
//
// Errors:
//   - walking root, reading a file, or any storage failure.
func (l *Linker) Link(ctx context.Context, ws storage.Workspace, root string, tables []config.AttachmentTable) (Report, error) {
	logf := l.logger()
	start := time.Now()
	var rep Report

	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		rep.RootMissing = true
		logf("WARN stage=attach root=%s missing; attachments skipped", root)
		return rep, nil
	}

	bindings, err := Bindings(root)
	if err != nil {
		return rep, err
	}
	rep.Bindings = len(bindings)

	for _, t := range tables {
		ok, err := ws.Exists(ctx, t.Table)
		if err != nil {
			return rep, fmt.Errorf("attach: check table %s: %w", t.Table, err)
		}
		if !ok {
			rep.Skipped = append(rep.Skipped, t.Table)
			continue
		}
		if err := ws.EnableAttachments(ctx, t.Table); err != nil {
			return rep, fmt.Errorf("attach: enable on %s: %w", t.Table, err)
		}
		res, err := ws.AddAttachments(ctx, t.Table, t.JoinField, bindings)
		if err != nil {
			return rep, fmt.Errorf("attach: add to %s: %w", t.Table, err)
		}
		rep.Tables = append(rep.Tables, TableResult{Table: t.Table, AttachResult: res})
		logf("stage=attach table=%s join=%s files=%d attached=%d", t.Table, t.JoinField, res.Files, res.Attached)
	}

	if !l.KeepRoot {
		if err := os.RemoveAll(root); err != nil {
			logf("WARN stage=attach root=%s cleanup failed: %v", root, err)
		}
	}
	logf("stage=attach ok bindings=%d tables=%d skipped=%d duration=%s",
		rep.Bindings, len(rep.Tables), len(rep.Skipped), time.Since(start).Truncate(time.Millisecond))
	return rep, nil
}

// Bindings walks root's immediate subfolders. Each subfolder name is a key;
// every regular file below it (at any depth) becomes one binding. Files
// directly inside root have no key and are ignored. Order is by key, then
// path.
func Bindings(root string) ([]storage.Attachment, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("attach: read %s: %w", root, err)
	}

	var out []storage.Attachment
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		key := e.Name()
		dir := filepath.Join(root, key)
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			a, err := describe(key, path)
			if err != nil {
				return err
			}
			out = append(out, a)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("attach: walk %s: %w", dir, err)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// describe fills in name, content type and, for HTML pages, the title.
func describe(key, path string) (storage.Attachment, error) {
	a := storage.Attachment{Key: key, Path: path, Name: filepath.Base(path)}

	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		head, err := sniff(path)
		if err != nil {
			return a, err
		}
		ct = http.DetectContentType(head)
	}
	a.ContentType = ct

	if strings.HasPrefix(ct, "text/html") {
		title, err := htmlTitle(path)
		if err != nil {
			return a, err
		}
		a.Title = title
	}
	return a, nil
}

func sniff(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// htmlTitle returns the page's <title>, or "" when it has none.
func htmlTitle(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("parse html %s: %w", path, err)
	}
	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " "), nil
}
