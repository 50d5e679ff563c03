package filter

// Draft is a two-state value holder: a draft that is edited freely and a
// committed value that only changes through Commit or Reset.
// T must be a plain value type so that assignment is a full copy.
type Draft[T any] struct {
	draft     T
	committed T
}

// NewDraft creates a holder where both states start at initial.
func NewDraft[T any](initial T) *Draft[T] {
	return &Draft[T]{draft: initial, committed: initial}
}

// Edit mutates the draft in place.
func (d *Draft[T]) Edit(fn func(*T)) {
	fn(&d.draft)
}

// Draft returns a copy of the draft value.
func (d *Draft[T]) Draft() T {
	return d.draft
}

// Committed returns a copy of the committed value.
func (d *Draft[T]) Committed() T {
	return d.committed
}

// Commit copies the draft over the committed value.
func (d *Draft[T]) Commit() {
	d.committed = d.draft
}

// Reset sets both states to v.
func (d *Draft[T]) Reset(v T) {
	d.draft = v
	d.committed = v
}
