// Package filesystem implements the IssueStore interface using JSON Lines files.
//
// The data directory holds a primary shard, issues.jsonl, plus optional
// secondary shards named issues-<name>.jsonl that arrive from other branches
// or machines. Each line is one issue record. The audit trail lives in
// changes.jsonl. Writers hold an exclusive flock on the .lock file, readers a
// shared one.
package filesystem

import (
	"bufio"
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"tasklanes/internal/issuestorage"
)

const (
	// PrimaryShard is the file every SaveAll rewrites.
	PrimaryShard = "issues.jsonl"
	// ChangesFile holds one PropertyChange record per line.
	ChangesFile = "changes.jsonl"

	shardPrefix = "issues-"
	shardExt    = ".jsonl"
	lockName    = ".lock"
	tmpMarker   = ".tmp."

	// maxLineSize bounds a single JSONL record.
	maxLineSize = 16 << 20
)

// FilesystemStorage implements issuestorage.ShardedStore and
// issuestorage.ChangeLog on top of a data directory.
type FilesystemStorage struct {
	root string
}

// New creates a new FilesystemStorage rooted at the given directory.
func New(root string) *FilesystemStorage {
	return &FilesystemStorage{root: root}
}

// Root returns the data directory.
func (fs *FilesystemStorage) Root() string {
	return fs.root
}

// Init creates the data directory and an empty primary shard if missing.
func (fs *FilesystemStorage) Init(ctx context.Context) error {
	if err := os.MkdirAll(fs.root, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(fs.path(PrimaryShard), os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

func (fs *FilesystemStorage) path(name string) string {
	return filepath.Join(fs.root, name)
}

func shardFile(shard string) string {
	return shardPrefix + shard + shardExt
}

// fileLock is a held flock on the data directory's lock file.
type fileLock struct {
	file *os.File
}

func (l *fileLock) release() {
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
}

// acquireLock takes the directory-wide lock. how is unix.LOCK_SH or
// unix.LOCK_EX.
func (fs *FilesystemStorage) acquireLock(how int) (*fileLock, error) {
	f, err := os.OpenFile(fs.path(lockName), os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s: %w", fs.root, err)
	}
	return &fileLock{file: f}, nil
}

// Shards lists secondary shard names in name order.
func (fs *FilesystemStorage) Shards(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, err := fs.acquireLock(unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer lock.release()
	return fs.shards()
}

func (fs *FilesystemStorage) shards() ([]string, error) {
	entries, err := os.ReadDir(fs.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var shards []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.Contains(name, tmpMarker) {
			continue
		}
		if !strings.HasPrefix(name, shardPrefix) || !strings.HasSuffix(name, shardExt) {
			continue
		}
		shard := strings.TrimSuffix(strings.TrimPrefix(name, shardPrefix), shardExt)
		if issuestorage.ValidateShardName(shard) != nil {
			continue
		}
		shards = append(shards, shard)
	}
	sort.Strings(shards)
	return shards, nil
}

// LoadAll reads every shard concurrently and returns the primary shard's
// records followed by each secondary shard's, in shard order.
func (fs *FilesystemStorage) LoadAll(ctx context.Context) ([]*issuestorage.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, err := fs.acquireLock(unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	shards, err := fs.shards()
	if err != nil {
		return nil, err
	}
	files := []string{PrimaryShard}
	for _, shard := range shards {
		files = append(files, shardFile(shard))
	}

	results := make([][]*issuestorage.Issue, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			issues, err := readIssues(gctx, fs.path(name))
			if err != nil {
				return fmt.Errorf("reading %s: %w", name, err)
			}
			results[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*issuestorage.Issue
	for _, issues := range results {
		all = append(all, issues...)
	}
	return all, nil
}

// readIssues parses a JSONL shard. A missing file is an empty shard.
func readIssues(ctx context.Context, path string) ([]*issuestorage.Issue, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var issues []*issuestorage.Issue
	err = scanLines(f, func(lineNo int, line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var issue issuestorage.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		issues = append(issues, &issue)
		return nil
	})
	return issues, err
}

// scanLines calls fn for every non-blank line of r.
func scanLines(r io.Reader, fn func(lineNo int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// SaveAll atomically rewrites the primary shard with issues and removes every
// secondary shard, whose content the caller has folded into issues.
func (fs *FilesystemStorage) SaveAll(ctx context.Context, issues []*issuestorage.Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, err := fs.acquireLock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer lock.release()

	if err := atomicWriteLines(fs.path(PrimaryShard), issues); err != nil {
		return err
	}

	shards, err := fs.shards()
	if err != nil {
		return err
	}
	for _, shard := range shards {
		if err := os.Remove(fs.path(shardFile(shard))); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// WriteShard atomically replaces the named secondary shard.
func (fs *FilesystemStorage) WriteShard(ctx context.Context, shard string, issues []*issuestorage.Issue) error {
	if err := issuestorage.ValidateShardName(shard); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	lock, err := fs.acquireLock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer lock.release()

	return atomicWriteLines(fs.path(shardFile(shard)), issues)
}

// Append adds one record to the end of the primary shard.
func (fs *FilesystemStorage) Append(ctx context.Context, issue *issuestorage.Issue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(issue)
	if err != nil {
		return err
	}

	lock, err := fs.acquireLock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer lock.release()

	return appendLine(fs.path(PrimaryShard), line)
}

type changeRecord struct {
	IssueID string                      `json:"issue_id"`
	Change  issuestorage.PropertyChange `json:"change"`
}

// RecordChanges appends changes for issueID to the audit log.
func (fs *FilesystemStorage) RecordChanges(ctx context.Context, issueID string, changes []issuestorage.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	id := issuestorage.NormalizeID(issueID)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, change := range changes {
		if err := enc.Encode(changeRecord{IssueID: id, Change: change}); err != nil {
			return err
		}
	}

	lock, err := fs.acquireLock(unix.LOCK_EX)
	if err != nil {
		return err
	}
	defer lock.release()

	return appendLine(fs.path(ChangesFile), bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}

// Changes returns the audit log entries for issueID, oldest first.
func (fs *FilesystemStorage) Changes(ctx context.Context, issueID string) ([]issuestorage.PropertyChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, err := fs.acquireLock(unix.LOCK_SH)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	f, err := os.Open(fs.path(ChangesFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	id := issuestorage.NormalizeID(issueID)
	var changes []issuestorage.PropertyChange
	err = scanLines(f, func(lineNo int, line []byte) error {
		var rec changeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("%s line %d: %w", ChangesFile, lineNo, err)
		}
		if rec.IssueID == id {
			changes = append(changes, rec.Change)
		}
		return nil
	})
	return changes, err
}

// appendLine writes line plus a newline to the end of path and syncs it.
func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// atomicWriteLines writes issues as JSONL to a uniquely named temp file, syncs
// it and renames it over path.
func atomicWriteLines(path string, issues []*issuestorage.Issue) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generating random suffix: %w", err)
	}
	tmp := path + tmpMarker + hex.EncodeToString(randBytes)

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, issue := range issues {
		if err := enc.Encode(issue); err != nil {
			f.Close()
			os.Remove(tmp)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Doctor scans the data directory for leftovers of interrupted writes and
// unreadable records. With fix set, temp files are removed and malformed
// lines are dropped from their shard. Every problem found is reported either
// way.
func (fs *FilesystemStorage) Doctor(ctx context.Context, fix bool) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lock, err := fs.acquireLock(unix.LOCK_EX)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, err
	}

	var problems []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}

		if strings.Contains(name, tmpMarker) {
			problems = append(problems, fmt.Sprintf("orphaned temp file: %s", name))
			if fix {
				os.Remove(fs.path(name))
			}
			continue
		}

		if name != PrimaryShard && !(strings.HasPrefix(name, shardPrefix) && strings.HasSuffix(name, shardExt)) {
			continue
		}

		found, err := fs.checkShard(name, fix)
		if err != nil {
			return problems, err
		}
		problems = append(problems, found...)
	}
	return problems, nil
}

// checkShard reports malformed lines in one shard and, with fix set, rewrites
// the shard without them.
func (fs *FilesystemStorage) checkShard(name string, fix bool) ([]string, error) {
	data, err := os.ReadFile(fs.path(name))
	if err != nil {
		return []string{fmt.Sprintf("cannot read file: %s: %v", name, err)}, nil
	}

	var problems []string
	var good []*issuestorage.Issue
	err = scanLines(bytes.NewReader(data), func(lineNo int, line []byte) error {
		var issue issuestorage.Issue
		if err := json.Unmarshal(line, &issue); err != nil {
			problems = append(problems, fmt.Sprintf("malformed JSON: %s line %d: %v", name, lineNo, err))
			return nil
		}
		if issuestorage.NormalizeID(issue.ID) == "" {
			problems = append(problems, fmt.Sprintf("record without id: %s line %d", name, lineNo))
			return nil
		}
		good = append(good, &issue)
		return nil
	})
	if errors.Is(err, bufio.ErrTooLong) {
		return append(problems, fmt.Sprintf("line too long: %s", name)), nil
	}
	if err != nil {
		return problems, err
	}

	if fix && len(problems) > 0 {
		if err := atomicWriteLines(fs.path(name), good); err != nil {
			return problems, err
		}
	}
	return problems, nil
}
