// Package snapshot persists index state as versioned, checksummed snapshot
// files. Every save produces a new immutable file; a LATEST pointer is swapped
// atomically so readers never observe a partial write. Corrupt snapshots are
// detected on load and skipped in favor of the newest valid predecessor.
package snapshot

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	qerrors "github.com/quillsearch/quill/internal/errors"
	"github.com/quillsearch/quill/internal/store"
)

// Snapshot file layout: magic, 8-byte big-endian payload length, 32-byte
// SHA-256 of the payload, then the gob-encoded payload.
var fileMagic = []byte("QUILSNP1")

const (
	snapshotExt   = ".snap"
	latestFile    = "LATEST"
	lockFile      = "writer.lock"
	snapshotPerm  = 0o644
	// DefaultKeepVersions is how many snapshot versions are retained.
	DefaultKeepVersions = 3
)

// Sentinel errors for load failures.
var (
	// ErrCorruptSnapshot indicates a snapshot file failed checksum or
	// structural validation.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrVersionNotFound indicates the requested snapshot version does not
	// exist on disk.
	ErrVersionNotFound = errors.New("snapshot version not found")

	// ErrNoSnapshots indicates the snapshot directory holds no snapshots.
	ErrNoSnapshots = errors.New("no snapshots found")

	// ErrWriteLocked indicates another process holds the writer lock.
	ErrWriteLocked = errors.New("snapshot directory is write-locked")
)

// Payload is the durable form of one index generation. Vectors are stored
// raw; the in-memory vector index is rebuilt on load so the on-disk format
// stays independent of the flat/HNSW backend choice.
type Payload struct {
	Version    uint64
	CreatedAt  time.Time
	Model      string // embedding model that produced the vectors
	Dimensions int
	Chunks     map[string]*store.Chunk
	Vectors    map[string][]float32
	Keyword    *store.InvertedIndex
}

// Manager reads and writes snapshot files under a single directory.
// Saves require the exclusive writer lock; loads never lock.
type Manager struct {
	dir    string
	keep   int
	lock   *flock.Flock
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithKeepVersions overrides how many snapshot versions are retained.
func WithKeepVersions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.keep = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager rooted at dir, creating it if needed.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeSnapshotNotFound, fmt.Errorf("create snapshot directory: %w", err))
	}

	m := &Manager{
		dir:    dir,
		keep:   DefaultKeepVersions,
		lock:   flock.New(filepath.Join(dir, lockFile)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string { return m.dir }

// Save writes the payload as a new snapshot version and swaps LATEST to it.
// The snapshot file itself is written to a temp file and renamed, so a crash
// mid-save leaves the previous generation fully intact.
func (m *Manager) Save(ctx context.Context, p *Payload) error {
	locked, err := m.lock.TryLock()
	if err != nil {
		return qerrors.Wrap(qerrors.ErrCodeWriteLocked, fmt.Errorf("acquire writer lock: %w", err))
	}
	if !locked {
		return qerrors.Wrap(qerrors.ErrCodeWriteLocked, ErrWriteLocked)
	}
	defer func() { _ = m.lock.Unlock() }()

	if err := ctx.Err(); err != nil {
		return err
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(p); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeInternal, fmt.Errorf("encode snapshot: %w", err))
	}

	sum := sha256.Sum256(payload.Bytes())

	var buf bytes.Buffer
	buf.Write(fileMagic)
	var length [8]byte
	binary.BigEndian.PutUint64(length[:], uint64(payload.Len()))
	buf.Write(length[:])
	buf.Write(sum[:])
	buf.Write(payload.Bytes())

	path := m.versionPath(p.Version)
	if err := atomicWrite(path, buf.Bytes()); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeIndexFailed, fmt.Errorf("write snapshot %d: %w", p.Version, err))
	}

	// LATEST names the version; swapping it is the commit point.
	latest := []byte(strconv.FormatUint(p.Version, 10) + "\n")
	if err := atomicWrite(filepath.Join(m.dir, latestFile), latest); err != nil {
		return qerrors.Wrap(qerrors.ErrCodeIndexFailed, fmt.Errorf("update LATEST: %w", err))
	}

	m.logger.Info("snapshot saved",
		"version", p.Version,
		"chunks", len(p.Chunks),
		"bytes", buf.Len())

	m.prune(p.Version)
	return nil
}

// Load reads and validates one snapshot version.
func (m *Manager) Load(version uint64) (*Payload, error) {
	data, err := os.ReadFile(m.versionPath(version))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: version %d", ErrVersionNotFound, version)
		}
		return nil, qerrors.Wrap(qerrors.ErrCodeSnapshotNotFound, err)
	}
	return decode(data)
}

// LoadLatest follows the LATEST pointer and loads that version. It does not
// fall back; use LoadLatestValid for crash recovery.
func (m *Manager) LoadLatest() (*Payload, error) {
	version, err := m.latestVersion()
	if err != nil {
		return nil, err
	}
	return m.Load(version)
}

// LoadLatestValid walks versions from newest to oldest and returns the first
// one that validates, logging each corrupt file it skips. Returns
// ErrNoSnapshots when nothing on disk is usable; the caller starts empty.
func (m *Manager) LoadLatestValid() (*Payload, error) {
	versions, err := m.Versions()
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ErrNoSnapshots
	}

	for i := len(versions) - 1; i >= 0; i-- {
		p, err := m.Load(versions[i])
		if err != nil {
			m.logger.Warn("skipping unusable snapshot",
				"version", versions[i],
				"error", err)
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: all %d snapshots failed validation", ErrNoSnapshots, len(versions))
}

// Versions lists the snapshot versions present on disk, ascending.
func (m *Manager) Versions() ([]uint64, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.ErrCodeSnapshotNotFound, err)
	}

	var versions []uint64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		v, err := strconv.ParseUint(strings.TrimSuffix(name, snapshotExt), 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// latestVersion reads the LATEST pointer.
func (m *Manager) latestVersion() (uint64, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, latestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNoSnapshots
		}
		return 0, qerrors.Wrap(qerrors.ErrCodeSnapshotNotFound, err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed LATEST pointer: %v", ErrCorruptSnapshot, err)
	}
	return v, nil
}

// prune removes snapshot files older than the retention window. The current
// version is always kept regardless of the window.
func (m *Manager) prune(current uint64) {
	versions, err := m.Versions()
	if err != nil || len(versions) <= m.keep {
		return
	}
	for _, v := range versions[:len(versions)-m.keep] {
		if v == current {
			continue
		}
		if err := os.Remove(m.versionPath(v)); err != nil {
			m.logger.Warn("prune snapshot failed", "version", v, "error", err)
			continue
		}
		m.logger.Debug("pruned snapshot", "version", v)
	}
}

func (m *Manager) versionPath(version uint64) string {
	return filepath.Join(m.dir, fmt.Sprintf("%016d%s", version, snapshotExt))
}

// decode validates the file envelope and checksum, then decodes the payload.
func decode(data []byte) (*Payload, error) {
	header := len(fileMagic) + 8 + sha256.Size
	if len(data) < header {
		return nil, fmt.Errorf("%w: truncated header", ErrCorruptSnapshot)
	}
	if !bytes.Equal(data[:len(fileMagic)], fileMagic) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}

	length := binary.BigEndian.Uint64(data[len(fileMagic) : len(fileMagic)+8])
	payload := data[header:]
	if uint64(len(payload)) != length {
		return nil, fmt.Errorf("%w: payload length %d, header says %d", ErrCorruptSnapshot, len(payload), length)
	}

	var want [sha256.Size]byte
	copy(want[:], data[len(fileMagic)+8:header])
	if sha256.Sum256(payload) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}

	var p Payload
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrCorruptSnapshot, err)
	}
	return &p, nil
}

// atomicWrite writes data to a temp file in the same directory and renames
// it over the target.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Chmod(snapshotPerm); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
