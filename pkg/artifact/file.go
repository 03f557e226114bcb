package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

const (
	manifestFile     = "manifest.json"
	trainingPattern  = "training-v%d.ckpt"
	inferencePattern = "inference-v%d.fp16"
)

// record is the on-disk manifest. Locations are file names relative to the
// store directory.
type record struct {
	Version   uint64   `json:"version"`
	Training  Artifact `json:"training"`
	Inference Artifact `json:"inference"`
}

type fileStore struct {
	mu     sync.Mutex
	dir    string
	retain int
}

// NewFileStore keeps versioned artifact files in dir. The manifest file is
// replaced last, by rename, and is the commit point of every Save.
func NewFileStore(dir string, retain int) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &fileStore{
		dir:    dir,
		retain: retain,
	}, nil
}

func (s *fileStore) Save(ctx context.Context, snap Snapshot) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{
		Version:   snap.Inference.Version,
		Training:  snap.Training,
		Inference: snap.Inference,
	}
	rec.Training.Location = fmt.Sprintf(trainingPattern, snap.Training.Version)
	rec.Inference.Location = fmt.Sprintf(inferencePattern, snap.Inference.Version)

	written := make([]string, 0, 2)
	cleanup := func() {
		for _, name := range written {
			_ = os.Remove(filepath.Join(s.dir, name))
		}
	}

	for _, f := range []struct {
		name string
		data []byte
	}{
		{rec.Training.Location, snap.TrainingData},
		{rec.Inference.Location, snap.InferenceData},
	} {
		if err := ctx.Err(); err != nil {
			cleanup()

			return Snapshot{}, err
		}
		if err := writeFile(s.dir, f.name, f.data); err != nil {
			cleanup()

			return Snapshot{}, err
		}
		written = append(written, f.name)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		cleanup()

		return Snapshot{}, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeFile(s.dir, manifestFile, data); err != nil {
		cleanup()

		return Snapshot{}, err
	}

	snap.Training.Location = filepath.Join(s.dir, rec.Training.Location)
	snap.Inference.Location = filepath.Join(s.dir, rec.Inference.Location)

	return snap, nil
}

// Load re-reads the current artifacts and verifies them against the recorded
// digests. Any mismatch or missing file is an integrity violation.
func (s *fileStore) Load(_ context.Context) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok, err := s.readRecord()
	if err != nil || !ok {
		return Snapshot{}, ok, err
	}

	training, err := s.readVerified(rec.Training)
	if err != nil {
		return Snapshot{}, false, err
	}
	inference, err := s.readVerified(rec.Inference)
	if err != nil {
		return Snapshot{}, false, err
	}

	snap := Snapshot{
		Training:      rec.Training,
		Inference:     rec.Inference,
		TrainingData:  training,
		InferenceData: inference,
	}
	snap.Training.Location = filepath.Join(s.dir, rec.Training.Location)
	snap.Inference.Location = filepath.Join(s.dir, rec.Inference.Location)

	return snap, true, nil
}

func (s *fileStore) Prune(_ context.Context) error {
	if s.retain <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	superseded, err := s.superseded()
	if err != nil {
		return err
	}
	if len(superseded) <= s.retain {
		return nil
	}

	var errs []error
	for _, v := range superseded[:len(superseded)-s.retain] {
		for _, pattern := range []string{trainingPattern, inferencePattern} {
			if err := os.Remove(filepath.Join(s.dir, fmt.Sprintf(pattern, v))); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}

	return errors.Join(errs...)
}

func (s *fileStore) Archived(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	superseded, err := s.superseded()
	if err != nil {
		return 0, err
	}

	return len(superseded), nil
}

// superseded lists stored versions other than the current one, oldest first.
func (s *fileStore) superseded() ([]uint64, error) {
	rec, ok, err := s.readRecord()
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var versions []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var v uint64
		if _, err := fmt.Sscanf(e.Name(), inferencePattern, &v); err != nil {
			continue
		}
		if e.Name() != fmt.Sprintf(inferencePattern, v) {
			continue
		}
		if ok && v == rec.Version {
			continue
		}
		versions = append(versions, v)
	}
	slices.Sort(versions)

	return versions, nil
}

func (s *fileStore) readRecord() (record, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return record{}, false, nil
	case err != nil:
		return record{}, false, fmt.Errorf("%w: %w", ErrIntegrityViolation, err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, false, fmt.Errorf("%w: manifest: %w", ErrIntegrityViolation, err)
	}

	return rec, true, nil
}

func (s *fileStore) readVerified(a Artifact) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(a.Location)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s artifact v%d: %w", ErrIntegrityViolation, a.Format, a.Version, err)
	}
	if int64(len(data)) != a.SizeBytes || Digest(data) != a.ContentHash {
		return nil, fmt.Errorf("%w: %s artifact v%d digest mismatch", ErrIntegrityViolation, a.Format, a.Version)
	}

	return data, nil
}

func writeFile(dir, name string, data []byte) error {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)

		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)

		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)

		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		os.Remove(tmp)

		return fmt.Errorf("failed to rename %s: %w", name, err)
	}

	// Persist the rename itself.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}

	return nil
}
