// Package storage keeps a small BoltDB manifest of the model artifacts the
// service has loaded, so a replaced artifact can be noticed between runs.
//
// Only artifact fingerprints are stored. Submitted measurements and
// predictions never reach this package.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFileName      = "diseasepredict.db"
	artifactsBucket = "artifacts" // Bucket name for artifact fingerprints, keyed by disease ID
)

// ArtifactRecord fingerprints one model artifact.
type ArtifactRecord struct {
	Disease   string    `json:"disease"`
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// Change is the result of recording an artifact.
type Change struct {
	Previous *ArtifactRecord
	Current  ArtifactRecord
}

// New reports whether the artifact had not been recorded before.
func (c Change) New() bool { return c.Previous == nil }

// Changed reports whether the checksum differs from the previous run.
func (c Change) Changed() bool {
	return c.Previous != nil && c.Previous.SHA256 != c.Current.SHA256
}

// Store is the artifact manifest.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the manifest under dataPath.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
			return fmt.Errorf("create artifacts bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database. Closing twice is harmless.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Fingerprint hashes the artifact at path.
func Fingerprint(disease, path string) (ArtifactRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("stat artifact: %w", err)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return ArtifactRecord{}, fmt.Errorf("hash artifact: %w", err)
	}

	return ArtifactRecord{
		Disease: disease,
		Path:    path,
		SHA256:  hex.EncodeToString(h.Sum(nil)),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// Record stores rec as the current fingerprint for its disease and returns
// the previous one, if any. FirstSeen carries over while the checksum is
// unchanged.
func (s *Store) Record(rec ArtifactRecord, now time.Time) (Change, error) {
	if rec.Disease == "" {
		return Change{}, fmt.Errorf("artifact record has no disease")
	}
	now = now.UTC()

	var change Change
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(artifactsBucket))

		if data := b.Get([]byte(rec.Disease)); data != nil {
			var prev ArtifactRecord
			if err := json.Unmarshal(data, &prev); err == nil {
				change.Previous = &prev
			}
		}

		rec.FirstSeen = now
		if change.Previous != nil && change.Previous.SHA256 == rec.SHA256 {
			rec.FirstSeen = change.Previous.FirstSeen
		}
		rec.LastSeen = now
		change.Current = rec

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal artifact record: %w", err)
		}
		return b.Put([]byte(rec.Disease), data)
	})
	return change, err
}

// Get returns the stored fingerprint for disease.
func (s *Store) Get(disease string) (ArtifactRecord, bool, error) {
	var rec ArtifactRecord
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(artifactsBucket)).Get([]byte(disease))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	return rec, found, err
}

// List returns all fingerprints ordered by disease ID.
func (s *Store) List() ([]ArtifactRecord, error) {
	var records []ArtifactRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(artifactsBucket)).ForEach(func(_, v []byte) error {
			var rec ArtifactRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return nil // Skip malformed records
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}
