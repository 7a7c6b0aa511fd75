package config

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// ValidateFunc is the full-document validation hook. The store always runs
// Document.Validate; callers add op-level compile checks through this so the
// config layer stays ignorant of the parser.
type ValidateFunc func(*Document) error

// Store owns the configuration aggregate for the process. The aggregate's
// identity never changes: reloads replace its contents under the write lock
// and notify subscribers.
type Store struct {
	dir      string
	validate ValidateFunc

	mu   sync.RWMutex
	doc  *Document
	subs []func(*Document)
}

// NewStore loads and validates the configuration in dir and serves it. A
// load or validation failure here is fatal to the caller: there is nothing
// to fall back to yet.
func NewStore(dir string, validate ValidateFunc) (*Store, error) {
	s := &Store{dir: dir, validate: validate}
	doc, err := s.loadChecked()
	if err != nil {
		return nil, err
	}
	s.doc = doc
	log.WithFields(log.Fields{"dir": dir, "suppliers": len(doc.Suppliers), "version": doc.Version}).
		Debug("configuration loaded")
	return s, nil
}

// Dir returns the configuration directory being served.
func (s *Store) Dir() string { return s.dir }

// Aggregate returns the live aggregate. The pointer stays valid across
// reloads; see Snapshot for a stable per-run view.
func (s *Store) Aggregate() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Snapshot returns a view of the configuration that will not change under
// the caller. A file-processing run takes one snapshot at entry and works
// off it to commit.
func (s *Store) Snapshot() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// OnReload registers fn to run after every successful reload. Callbacks run
// outside the store lock, in registration order.
func (s *Store) OnReload(fn func(*Document)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Reload reparses the directory. On success the aggregate is replaced in
// place and subscribers fire; on failure the previous configuration stays
// active and the error is returned for logging.
func (s *Store) Reload() error {
	doc, err := s.loadChecked()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.doc.ReplaceFrom(doc)
	current := s.doc
	subs := make([]func(*Document), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	log.WithFields(log.Fields{"suppliers": len(doc.Suppliers), "version": doc.Version}).
		Info("configuration reloaded")
	for _, fn := range subs {
		fn(current)
	}
	return nil
}

func (s *Store) loadChecked() (*Document, error) {
	doc, err := Load(s.dir)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	if s.validate != nil {
		if err := s.validate(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}
