package remold

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Validator checks a decoded field value. A non-nil error rejects it.
type Validator func(value any) error

// FieldRule describes how one field maps between an instance and a document.
type FieldRule struct {
	SourceKey   string    // Go field name on the instance
	DocumentKey string    // Key in the document
	Included    bool      // False for excluded fields
	Codec       Codec     // Value transform, Identity by default
	Default     any       // Decode value for excluded fields
	Validator   Validator // Optional decode-time check
	Static      bool      // True for type-level values
	ReadStatic  func() any
}

func (r *FieldRule) clone() *FieldRule {
	c := *r
	return &c
}

// TypeMetadata maps source keys to their rules.
type TypeMetadata map[string]*FieldRule

// descriptor holds the rules one type declares itself.
type descriptor struct {
	typ         reflect.Type
	parent      reflect.Type
	rules       map[string]*FieldRule
	statics     map[string]*FieldRule
	staticOrder []string
	version     *VersionRecord
	factory     func() reflect.Value
}

// Registry is the metadata table: per-type field rules, static rules,
// versions and parent links. Registries are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	types map[reflect.Type]*descriptor
	plans map[reflect.Type]*plan
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: make(map[reflect.Type]*descriptor),
		plans: make(map[reflect.Type]*plan),
	}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by Default().
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// structType strips pointers and rejects non-struct types.
func structType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, newConfigurationError(ErrNotStruct, nil, "", "nil type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, newConfigurationError(ErrNotStruct, t, "", "")
	}
	return t, nil
}

// own returns the descriptor for t, creating it. Callers hold mu.
func (r *Registry) own(t reflect.Type) *descriptor {
	d, ok := r.types[t]
	if !ok {
		d = &descriptor{
			typ:     t,
			rules:   make(map[string]*FieldRule),
			statics: make(map[string]*FieldRule),
		}
		r.types[t] = d
	}
	return d
}

// invalidate drops cached plans. Callers hold mu.
func (r *Registry) invalidate() {
	if len(r.plans) > 0 {
		r.plans = make(map[reflect.Type]*plan)
	}
}

// Manage registers t with no rules, making it a managed type.
func (r *Registry) Manage(t reflect.Type) error {
	t, err := structType(t)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.types[t]; !ok {
		r.own(t)
		r.invalidate()
	}
	return nil
}

// IsManaged reports whether t (or the struct it points to) has a descriptor.
func (r *Registry) IsManaged(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[t]
	return ok
}

// SetField sets one attribute of the rule for sourceKey on t, creating the
// rule as included with the identity codec if needed.
func (r *Registry) SetField(t reflect.Type, sourceKey string, attr Attribute, value any) error {
	t, err := structType(t)
	if err != nil {
		return err
	}
	if !IsKnownAttribute(attr) {
		return newConfigurationError(ErrUnknownAttribute, t, sourceKey, string(attr))
	}
	if !IsSettable(attr) {
		return newConfigurationError(ErrProtectedAttribute, t, sourceKey, string(attr))
	}
	sf, ok := t.FieldByName(sourceKey)
	if !ok || !sf.IsExported() {
		return newConfigurationError(ErrUnknownField, t, sourceKey, "")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.own(t)
	rule, exists := d.rules[sourceKey]
	if exists && !rule.Included {
		return newConfigurationError(ErrExcludedField, t, sourceKey, fmt.Sprintf("cannot set %s", attr))
	}

	var next *FieldRule
	if exists {
		next = rule.clone()
	} else {
		next = &FieldRule{SourceKey: sourceKey, DocumentKey: sourceKey, Included: true, Codec: Identity()}
	}
	if err := applyAttribute(next, attr, value); err != nil {
		return newConfigurationError(ErrInvalidValue, t, sourceKey, err.Error())
	}

	d.rules[sourceKey] = next
	r.invalidate()
	return nil
}

// SetStaticField sets one attribute of the static rule for sourceKey on t.
// read supplies the value at encode time; it is required when the rule is
// created and ignored afterwards.
func (r *Registry) SetStaticField(t reflect.Type, sourceKey string, attr Attribute, value any, read func() any) error {
	t, err := structType(t)
	if err != nil {
		return err
	}
	if !IsKnownAttribute(attr) {
		return newConfigurationError(ErrUnknownAttribute, t, sourceKey, string(attr))
	}
	if attr != AttrDocumentKey && attr != AttrCodec {
		return newConfigurationError(ErrProtectedAttribute, t, sourceKey, fmt.Sprintf("%s on a static field", attr))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.own(t)
	rule, exists := d.statics[sourceKey]
	var next *FieldRule
	if exists {
		next = rule.clone()
	} else {
		if read == nil {
			return newConfigurationError(ErrInvalidValue, t, sourceKey, "static field requires a reader")
		}
		next = &FieldRule{
			SourceKey:   sourceKey,
			DocumentKey: sourceKey,
			Included:    true,
			Codec:       Identity(),
			Static:      true,
			ReadStatic:  read,
		}
	}
	if err := applyAttribute(next, attr, value); err != nil {
		return newConfigurationError(ErrInvalidValue, t, sourceKey, err.Error())
	}

	if !exists {
		d.staticOrder = append(d.staticOrder, sourceKey)
	}
	d.statics[sourceKey] = next
	r.invalidate()
	return nil
}

// MarkExcluded records sourceKey as excluded from documents. On decode the
// field receives def, or its zero value when def is nil. def must coerce to
// the field type the way a document value would; slice, map and pointer
// defaults are copied one level deep into each decoded instance.
func (r *Registry) MarkExcluded(t reflect.Type, sourceKey string, def any) error {
	t, err := structType(t)
	if err != nil {
		return err
	}
	sf, ok := t.FieldByName(sourceKey)
	if !ok || !sf.IsExported() {
		return newConfigurationError(ErrUnknownField, t, sourceKey, "")
	}
	if def != nil {
		dec := newDecoder(context.Background(), &Engine{registry: r})
		if _, err := dec.defaultValue(def, sf.Type); err != nil {
			return newConfigurationError(ErrInvalidValue, t, sourceKey,
				fmt.Sprintf("default of type %T does not fit %s: %v", def, sf.Type, err))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d := r.own(t)
	if _, exists := d.rules[sourceKey]; exists {
		return newConfigurationError(ErrRuleExists, t, sourceKey, "exclusion cannot be combined with other attributes")
	}
	d.rules[sourceKey] = &FieldRule{
		SourceKey:   sourceKey,
		DocumentKey: sourceKey,
		Included:    false,
		Codec:       Identity(),
		Default:     def,
	}
	r.invalidate()
	return nil
}

// Extend makes parent the ancestor of child: child inherits its rules,
// statics and version.
func (r *Registry) Extend(child, parent reflect.Type) error {
	child, err := structType(child)
	if err != nil {
		return err
	}
	parent, err = structType(parent)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if child == parent {
		return newConfigurationError(ErrCyclicHierarchy, child, "", "type cannot extend itself")
	}
	for p := parent; p != nil; {
		if p == child {
			return newConfigurationError(ErrCyclicHierarchy, child, "", fmt.Sprintf("%s already descends from it", parent))
		}
		d, ok := r.types[p]
		if !ok {
			break
		}
		p = d.parent
	}

	d := r.own(child)
	if d.parent != nil && d.parent != parent {
		return newConfigurationError(ErrParentSet, child, "", fmt.Sprintf("extends %s", d.parent))
	}
	r.own(parent)
	d.parent = parent
	r.invalidate()
	return nil
}

// SetFactory overrides how blank instances of t are allocated on decode.
// The function must return an addressable value of type t.
func (r *Registry) SetFactory(t reflect.Type, factory func() reflect.Value) error {
	t, err := structType(t)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.own(t).factory = factory
	r.invalidate()
	return nil
}

// Parent returns the declared parent of t.
func (r *Registry) Parent(t reflect.Type) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[t]
	if !ok || d.parent == nil {
		return nil, false
	}
	return d.parent, true
}

// chain returns the descriptors from the root ancestor down to t.
// Callers hold mu.
func (r *Registry) chain(t reflect.Type) []*descriptor {
	var out []*descriptor
	for p := t; p != nil; {
		d, ok := r.types[p]
		if !ok {
			break
		}
		out = append(out, d)
		p = d.parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Resolve merges the instance rules of t and its ancestors; the nearest
// declaration of a source key wins. The returned rules are copies.
func (r *Registry) Resolve(t reflect.Type) TypeMetadata {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolve(t)
}

func (r *Registry) resolve(t reflect.Type) TypeMetadata {
	md := make(TypeMetadata)
	for _, d := range r.chain(t) {
		for key, rule := range d.rules {
			md[key] = rule.clone()
		}
	}
	return md
}

// Invert re-keys md by document key. Two rules claiming the same document
// key fail with a ConfigurationError.
func Invert(md TypeMetadata) (map[string]*FieldRule, error) {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]*FieldRule, len(md))
	for _, k := range keys {
		rule := md[k]
		if prev, ok := out[rule.DocumentKey]; ok {
			return nil, &ConfigurationError{
				Err:    ErrDuplicateKey,
				Field:  rule.SourceKey,
				Detail: fmt.Sprintf("%q is claimed by %s and %s", rule.DocumentKey, prev.SourceKey, rule.SourceKey),
			}
		}
		c := rule.clone()
		c.SourceKey = k
		out[rule.DocumentKey] = c
	}
	return out, nil
}

// Statics returns the static rules of t and its ancestors, root first, each
// level in declaration order.
func (r *Registry) Statics(t reflect.Type) []*FieldRule {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.statics(t)
}

func (r *Registry) statics(t reflect.Type) []*FieldRule {
	var out []*FieldRule
	for _, d := range r.chain(t) {
		for _, key := range d.staticOrder {
			out = append(out, d.statics[key].clone())
		}
	}
	return out
}

// StaticKeys returns the document keys claimed by static rules of t and its
// ancestors.
func (r *Registry) StaticKeys(t reflect.Type) map[string]struct{} {
	keys := make(map[string]struct{})
	for _, rule := range r.Statics(t) {
		keys[rule.DocumentKey] = struct{}{}
	}
	return keys
}

// applyAttribute writes one attribute onto rule.
func applyAttribute(rule *FieldRule, attr Attribute, value any) error {
	switch attr {
	case AttrDocumentKey:
		name, ok := value.(string)
		if !ok || name == "" {
			return fmt.Errorf("document key must be a non-empty string, got %T", value)
		}
		rule.DocumentKey = name
	case AttrCodec:
		c, ok := value.(Codec)
		if !ok || c == nil {
			return fmt.Errorf("codec must implement Codec, got %T", value)
		}
		rule.Codec = c
	case AttrValidator:
		v, err := asValidator(value)
		if err != nil {
			return err
		}
		rule.Validator = v
	}
	return nil
}

// asValidator accepts the validator shapes SetField allows.
func asValidator(value any) (Validator, error) {
	switch fn := value.(type) {
	case Validator:
		if fn == nil {
			return nil, fmt.Errorf("validator is nil")
		}
		return fn, nil
	case func(any) error:
		if fn == nil {
			return nil, fmt.Errorf("validator is nil")
		}
		return fn, nil
	case func(any) bool:
		if fn == nil {
			return nil, fmt.Errorf("validator is nil")
		}
		return Check(fn), nil
	default:
		return nil, fmt.Errorf("validator must be a func(any) error or func(any) bool, got %T", value)
	}
}
