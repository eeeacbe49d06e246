package remold

import (
	"reflect"
	"sync"
)

// fieldInfo describes one settable field of a struct, including fields
// promoted from embedded structs.
type fieldInfo struct {
	name  string
	index []int
	typ   reflect.Type
}

// plan is the resolved, immutable view of a type used by encode and decode.
type plan struct {
	typ        reflect.Type
	managed    bool
	fields     []fieldInfo
	fieldIndex map[string]fieldInfo
	rules      TypeMetadata
	byDocument map[string]*FieldRule
	excluded   []*FieldRule
	statics    []*FieldRule
	staticKeys map[string]struct{}
	own        *VersionRecord
	nearest    *VersionRecord
	factory    func() reflect.Value
}

// plan returns the cached plan for struct type t, building it on first use.
func (r *Registry) plan(t reflect.Type) (*plan, error) {
	// Fast path: read-lock cache check
	r.mu.RLock()
	if p, ok := r.plans[t]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check pattern
	if p, ok := r.plans[t]; ok {
		return p, nil
	}

	p, err := r.buildPlan(t)
	if err != nil {
		return nil, err
	}
	r.plans[t] = p
	return p, nil
}

// buildPlan resolves rules, statics and versions for t. Callers hold mu.
func (r *Registry) buildPlan(t reflect.Type) (*plan, error) {
	fields := structFields(t)
	p := &plan{
		typ:        t,
		fields:     fields,
		fieldIndex: make(map[string]fieldInfo, len(fields)),
		rules:      r.resolve(t),
		statics:    r.statics(t),
		staticKeys: make(map[string]struct{}),
		nearest:    r.nearestVersion(t),
	}
	for _, f := range fields {
		p.fieldIndex[f.name] = f
	}

	byDocument, err := Invert(p.rules)
	if err != nil {
		if ce, ok := err.(*ConfigurationError); ok {
			ce.Type = typeName(t)
		}
		return nil, err
	}
	p.byDocument = byDocument

	for _, f := range fields {
		if rule, ok := p.rules[f.name]; ok && !rule.Included {
			p.excluded = append(p.excluded, rule)
		}
	}
	for _, rule := range p.statics {
		p.staticKeys[rule.DocumentKey] = struct{}{}
	}

	if d, ok := r.types[t]; ok {
		p.managed = true
		p.own = d.version
		p.factory = d.factory
	}
	if p.factory == nil {
		p.factory = func() reflect.Value { return reflect.New(t).Elem() }
	}
	return p, nil
}

var fieldCache sync.Map // map[reflect.Type][]fieldInfo

// structFields lists the exported fields of t in declaration order.
// Embedded structs are flattened following Go's promotion rules: the
// shallowest field of a name wins and ties at one depth hide each other.
func structFields(t reflect.Type) []fieldInfo {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldInfo)
	}

	type candidate struct {
		fieldInfo
		depth int
	}
	var all []candidate
	var walk func(t reflect.Type, prefix []int, depth int, seen map[reflect.Type]bool)
	walk = func(t reflect.Type, prefix []int, depth int, seen map[reflect.Type]bool) {
		for i := 0; i < t.NumField(); i++ {
			sf := t.Field(i)
			index := append(append([]int{}, prefix...), i)
			if sf.Anonymous && sf.Type.Kind() == reflect.Struct && !seen[sf.Type] {
				seen[sf.Type] = true
				walk(sf.Type, index, depth+1, seen)
				delete(seen, sf.Type)
				continue
			}
			if !sf.IsExported() {
				continue
			}
			all = append(all, candidate{fieldInfo{name: sf.Name, index: index, typ: sf.Type}, depth})
		}
	}
	walk(t, nil, 0, map[reflect.Type]bool{t: true})

	shallowest := make(map[string]int)
	count := make(map[string]int)
	for _, c := range all {
		d, ok := shallowest[c.name]
		switch {
		case !ok || c.depth < d:
			shallowest[c.name] = c.depth
			count[c.name] = 1
		case c.depth == d:
			count[c.name]++
		}
	}

	out := make([]fieldInfo, 0, len(all))
	for _, c := range all {
		if c.depth == shallowest[c.name] && count[c.name] == 1 {
			out = append(out, c.fieldInfo)
		}
	}

	fieldCache.Store(t, out)
	return out
}
