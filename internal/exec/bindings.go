package exec

// Bindings is an insertion-ordered map<string, value>, grounded on the
// same Keys-slice-plus-map idiom used by expr.Expr's object literal
// (internal/expr/expr.go) since spec.md §4.G requires bindings to be an
// "ordered map".
type Bindings struct {
	keys   []string
	values map[string]any
}

// NewBindings creates an empty ordered binding set.
func NewBindings() *Bindings {
	return &Bindings{values: make(map[string]any)}
}

// Set records name=value, appending name to the key order on first write.
func (b *Bindings) Set(name string, value any) {
	if _, ok := b.values[name]; !ok {
		b.keys = append(b.keys, name)
	}
	b.values[name] = value
}

// Get returns the bound value and whether it was ever set.
func (b *Bindings) Get(name string) (any, bool) {
	v, ok := b.values[name]
	return v, ok
}

// Keys returns the bound names in first-set order.
func (b *Bindings) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Snapshot returns a plain map copy of all bindings, for evaluator contexts
// that don't care about order.
func (b *Bindings) Snapshot() map[string]any {
	out := make(map[string]any, len(b.values))
	for k, v := range b.values {
		out[k] = v
	}
	return out
}
