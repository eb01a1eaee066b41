package store

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ursnani/Voice-Cloning/internal/voice"
)

const sidecarExt = ".json"

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// FileStore keeps each sample as an audio file plus a JSON sidecar:
//
//	voices/v1.wav
//	voices/v1.json
//
// The sidecar is written last, so a sample is visible only once complete.
type FileStore struct {
	dir  string
	opts options

	// serializes ID allocation and writes
	mu sync.Mutex
}

// NewFileStore opens (and creates if needed) a sample directory
func NewFileStore(dir string, opts ...Option) (*FileStore, error) {
	if dir == "" {
		dir = voice.DefaultSamplesDir
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create samples directory: %w", err)
	}
	return &FileStore{dir: dir, opts: o}, nil
}

// Dir returns the sample directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Save persists a new sample under the next sequential ID
func (s *FileStore) Save(ctx context.Context, audio []byte, format voice.Format) (*voice.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	audio, format, err := prepare(audio, format, s.opts.minDuration)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.nextID()
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(audio)
	sample := &voice.Sample{
		Metadata: voice.Metadata{
			ID:        id,
			Format:    format,
			Size:      int64(len(audio)),
			SHA256:    hex.EncodeToString(sum[:]),
			CreatedAt: s.opts.now().UTC(),
		},
		Audio: audio,
	}

	audioPath := s.audioPath(id, format.Encoding)
	if err := writeFileAtomic(s.dir, audioPath, audio); err != nil {
		return nil, fmt.Errorf("failed to write sample audio: %w", err)
	}

	meta, err := json.MarshalIndent(sample.Metadata, "", "  ")
	if err != nil {
		_ = os.Remove(audioPath)
		return nil, fmt.Errorf("failed to marshal sample metadata: %w", err)
	}
	if err := writeFileAtomic(s.dir, s.sidecarPath(id), meta); err != nil {
		_ = os.Remove(audioPath)
		return nil, fmt.Errorf("failed to write sample metadata: %w", err)
	}

	log.Debug().
		Str("id", id).
		Str("encoding", string(format.Encoding)).
		Dur("duration", format.Duration).
		Int64("size", sample.Size).
		Msg("Saved voice sample")

	return sample, nil
}

// Get loads a sample and its audio
func (s *FileStore) Get(ctx context.Context, id string) (*voice.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := s.readMetadata(id)
	if err != nil {
		return nil, err
	}

	audio, err := os.ReadFile(s.audioPath(id, meta.Format.Encoding))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("sample %s audio missing: %w", id, voice.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read sample audio: %w", err)
	}

	return &voice.Sample{Metadata: *meta, Audio: audio}, nil
}

// List yields sample metadata ordered by creation time, then ID
func (s *FileStore) List(ctx context.Context) iter.Seq2[voice.Metadata, error] {
	return func(yield func(voice.Metadata, error) bool) {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			yield(voice.Metadata{}, fmt.Errorf("failed to read samples directory: %w", err))
			return
		}

		var metas []voice.Metadata
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || !strings.HasSuffix(name, sidecarExt) {
				continue
			}
			m, err := s.readMetadata(strings.TrimSuffix(name, sidecarExt))
			if err != nil {
				// Removed between ReadDir and read
				if errors.Is(err, voice.ErrNotFound) {
					continue
				}
				if !yield(voice.Metadata{}, err) {
					return
				}
				continue
			}
			metas = append(metas, *m)
		}

		slices.SortFunc(metas, compareMetadata)

		for _, m := range metas {
			if ctx.Err() != nil {
				yield(voice.Metadata{}, ctx.Err())
				return
			}
			if !yield(m, nil) {
				return
			}
		}
	}
}

// Delete removes a sample's audio and sidecar
func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMetadata(id)
	if err != nil {
		return err
	}

	// sidecar first so a partial delete leaves the sample invisible
	if err := os.Remove(s.sidecarPath(id)); err != nil {
		return fmt.Errorf("failed to delete sample metadata: %w", err)
	}
	if err := os.Remove(s.audioPath(id, meta.Format.Encoding)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete sample audio: %w", err)
	}

	log.Debug().Str("id", id).Msg("Deleted voice sample")
	return nil
}

func (s *FileStore) readMetadata(id string) (*voice.Metadata, error) {
	if !validID.MatchString(id) {
		return nil, fmt.Errorf("sample %q: %w", id, voice.ErrNotFound)
	}

	data, err := os.ReadFile(s.sidecarPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("sample %s: %w", id, voice.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read sample metadata: %w", err)
	}

	var meta voice.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse sample metadata %s: %w", id, err)
	}
	return &meta, nil
}

// nextID scans existing sidecars so numbering survives restarts. Caller holds mu.
func (s *FileStore) nextID() (string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("failed to read samples directory: %w", err)
	}

	highest := 0
	for _, e := range entries {
		if n, ok := seqNumber(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))); ok && n > highest {
			highest = n
		}
	}
	return "v" + strconv.Itoa(highest+1), nil
}

func (s *FileStore) audioPath(id string, enc voice.Encoding) string {
	return filepath.Join(s.dir, id+"."+enc.Extension())
}

func (s *FileStore) sidecarPath(id string) string {
	return filepath.Join(s.dir, id+sidecarExt)
}

func seqNumber(id string) (int, bool) {
	if !strings.HasPrefix(id, "v") {
		return 0, false
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func compareMetadata(a, b voice.Metadata) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	na, okA := seqNumber(a.ID)
	nb, okB := seqNumber(b.ID)
	if okA && okB {
		return cmp.Compare(na, nb)
	}
	return strings.Compare(a.ID, b.ID)
}

// writeFileAtomic writes via a temp file in dir and renames it into place
func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
