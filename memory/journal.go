package memory

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Journal persists every version written to a Memory. Append is called while
// the key lock is held, so per-key append order equals history order.
type Journal interface {
	// Append records v as entry seq of key's history.
	Append(ctx context.Context, key string, seq int, v Version) error
	// Replay calls fn for every recorded version, in history order per key.
	Replay(ctx context.Context, fn func(key string, v Version) error) error
	// Close releases the journal's resources.
	Close() error
}

const journalExt = ".jsonl"

type fileJournal struct {
	root string
}

// NewFileJournal creates a Journal that keeps one append-only JSON-lines file
// per key under root. File names are the hex encoding of the key.
func NewFileJournal(root string) Journal {
	return &fileJournal{root: root}
}

func (j *fileJournal) path(key string) string {
	return filepath.Join(j.root, hex.EncodeToString([]byte(key))+journalExt)
}

func (j *fileJournal) Append(ctx context.Context, key string, seq int, v Version) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJournalAppend, key, err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(j.root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJournalAppend, key, err)
	}

	f, err := os.OpenFile(j.path(key), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJournalAppend, key, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrJournalAppend, key, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJournalAppend, key, err)
	}
	return nil
}

func (j *fileJournal) Replay(ctx context.Context, fn func(key string, v Version) error) error {
	entries, err := os.ReadDir(j.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrJournalReplay, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), journalExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := hex.DecodeString(strings.TrimSuffix(name, journalExt))
		if err != nil {
			continue
		}
		if err := j.replayFile(filepath.Join(j.root, name), string(raw), fn); err != nil {
			return err
		}
	}
	return nil
}

func (j *fileJournal) replayFile(path, key string, fn func(key string, v Version) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJournalReplay, key, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var v Version
		if err := json.Unmarshal(scanner.Bytes(), &v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrJournalReplay, key, err)
		}
		if err := fn(key, v); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrJournalReplay, key, err)
	}
	return nil
}

func (j *fileJournal) Close() error {
	return nil
}
