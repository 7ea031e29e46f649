package hr

// set copies *v into *dst when v is non-nil. Patches are built from it.
func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// clonePtr returns a fresh pointer to a copy of *p, or nil.
func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
