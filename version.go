package remold

import (
	"fmt"
	"reflect"
)

// VersionKey is the document key that carries a type's schema version.
const VersionKey = "version"

// Migrator upgrades a document written by an older schema. It receives a
// shallow copy of the stored document and returns the document to decode.
type Migrator func(doc *Document) (*Document, error)

// VersionRecord is a type's declared schema version.
type VersionRecord struct {
	Version  int
	Migrator Migrator
}

// SetVersion declares the schema version of t. A type's own version can be
// set once; ancestors are unaffected.
func (r *Registry) SetVersion(t reflect.Type, version int, migrator Migrator) error {
	t, err := structType(t)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.own(t)
	if d.version != nil {
		return newConfigurationError(ErrVersionSet, t, "", fmt.Sprintf("already at version %d", d.version.Version))
	}
	d.version = &VersionRecord{Version: version, Migrator: migrator}
	r.invalidate()
	return nil
}

// OwnVersion returns the version declared on t itself.
func (r *Registry) OwnVersion(t reflect.Type) (VersionRecord, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[t]
	if !ok || d.version == nil {
		return VersionRecord{}, false
	}
	return *d.version, true
}

// Version returns the nearest version record walking from t toward the root.
func (r *Registry) Version(t reflect.Type) (VersionRecord, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec := r.nearestVersion(t)
	if rec == nil {
		return VersionRecord{}, false
	}
	return *rec, true
}

// nearestVersion walks the parent links from t. Callers hold mu.
func (r *Registry) nearestVersion(t reflect.Type) *VersionRecord {
	for p := t; p != nil; {
		d, ok := r.types[p]
		if !ok {
			return nil
		}
		if d.version != nil {
			return d.version
		}
		p = d.parent
	}
	return nil
}

// documentVersion reads the version key of doc. Missing or non-numeric
// values count as version 0.
func documentVersion(doc *Document) int {
	raw, ok := doc.Get(VersionKey)
	if !ok {
		return 0
	}
	n, err := toInt64(raw)
	if err != nil {
		return 0
	}
	return int(n)
}
