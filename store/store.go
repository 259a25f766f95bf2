// Package store persists which interfaces, physical radios, and hook scripts
// are assigned to a namespace. One plain-text record file per namespace,
// newline-delimited tagged lines grouped by a content-addressed interface
// key, so the files stay greppable and diffable.
package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	filePrefix = "ifnetns"

	tagInterface = "interface"
	tagPhy       = "phy"
	tagScript    = "script"
)

// Key identifies an interface record. It is derived only from the interface
// name, never from mutable interface properties, so it stays stable across
// the interface's moves.
type Key string

// KeyFor returns the content-addressed key for an interface name: the first
// 12 bytes of its SHA-256, hex encoded.
func KeyFor(interfaceName string) Key {
	sum := sha256.Sum256([]byte(interfaceName))
	return Key(hex.EncodeToString(sum[:12]))
}

// Record is one interface assignment. Phy is set only for wireless
// interfaces; Script may be empty, meaning unconfigured.
type Record struct {
	Key    Key
	Name   string
	Phy    string
	Script string
}

// Store reads and writes per-namespace record files under Root. A namespace's
// file has a single writer at any instant; the invoking command serializes
// mutations, so the store does no locking of its own.
type Store struct {
	Root string
}

func New(root string) *Store {
	return &Store{Root: root}
}

// Path returns the record file path for a namespace.
func (s *Store) Path(ns string) string {
	return filepath.Join(s.Root, fmt.Sprintf("%s_%s", filePrefix, ns))
}

// Init creates an empty record file for the namespace, replacing any stale
// leftover from a previous incarnation.
func (s *Store) Init(ns string) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return errors.Wrap(err, "failed to create state root")
	}
	f, err := os.OpenFile(s.Path(ns), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to initialize record file")
	}
	return f.Close()
}

// Remove deletes the namespace's record file.
func (s *Store) Remove(ns string) error {
	if err := os.Remove(s.Path(ns)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove record file")
	}
	return nil
}

// Append writes the record's tagged lines. The script line is only written
// when a script is configured.
func (s *Store) Append(ns string, rec Record) error {
	f, err := os.OpenFile(s.Path(ns), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrap(err, "failed to open record file")
	}
	defer f.Close()

	lines := fmt.Sprintf("%s_%s:%s\n", tagInterface, rec.Key, rec.Name)
	if rec.Phy != "" {
		lines += fmt.Sprintf("%s_%s:%s\n", tagPhy, rec.Key, rec.Phy)
	}
	if rec.Script != "" {
		lines += fmt.Sprintf("%s_%s:%s\n", tagScript, rec.Key, rec.Script)
	}
	if _, err := f.WriteString(lines); err != nil {
		return errors.Wrap(err, "failed to append record")
	}
	return nil
}

// Delete removes every line carrying the given key.
func (s *Store) Delete(ns string, key Key) error {
	lines, err := s.readLines(ns)
	if err != nil {
		return err
	}
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, k, _, ok := parseLine(line); ok && k == key {
			continue
		}
		kept = append(kept, line)
	}
	out := strings.Join(kept, "\n")
	if out != "" {
		out += "\n"
	}
	if err := os.WriteFile(s.Path(ns), []byte(out), 0o644); err != nil {
		return errors.Wrap(err, "failed to rewrite record file")
	}
	return nil
}

// Interfaces returns the names of every interface recorded for the
// namespace, in file order.
func (s *Store) Interfaces(ns string) ([]string, error) {
	lines, err := s.readLines(ns)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range lines {
		if tag, _, value, ok := parseLine(line); ok && tag == tagInterface {
			names = append(names, value)
		}
	}
	return names, nil
}

// Lookup returns the record for an interface name, keyed by its fingerprint.
func (s *Store) Lookup(ns, interfaceName string) (Record, bool, error) {
	key := KeyFor(interfaceName)
	lines, err := s.readLines(ns)
	if err != nil {
		return Record{}, false, err
	}
	rec := Record{Key: key}
	found := false
	for _, line := range lines {
		tag, k, value, ok := parseLine(line)
		if !ok || k != key {
			continue
		}
		switch tag {
		case tagInterface:
			rec.Name = value
			found = true
		case tagPhy:
			rec.Phy = value
		case tagScript:
			rec.Script = value
		}
	}
	return rec, found, nil
}

func (s *Store) readLines(ns string) ([]string, error) {
	f, err := os.Open(s.Path(ns))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to open record file")
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, errors.Wrap(scanner.Err(), "failed to read record file")
}

// parseLine splits "tag_key:value". Malformed lines are skipped by callers.
func parseLine(line string) (tag string, key Key, value string, ok bool) {
	head, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", "", false
	}
	tag, keyStr, ok := strings.Cut(head, "_")
	if !ok {
		return "", "", "", false
	}
	return tag, Key(keyStr), value, true
}
