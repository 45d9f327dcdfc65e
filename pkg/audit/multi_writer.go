package audit

import "context"

// MultiWriter records every entry to each of its writers in order
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter fans out to writers, skipping nils
func NewMultiWriter(writers ...Writer) *MultiWriter {
	m := &MultiWriter{}
	for _, w := range writers {
		if w != nil {
			m.writers = append(m.writers, w)
		}
	}
	return m
}

// Record implements Writer
func (m *MultiWriter) Record(ctx context.Context, entry Entry) {
	for _, w := range m.writers {
		w.Record(ctx, entry)
	}
}

// Len returns the number of writers
func (m *MultiWriter) Len() int {
	return len(m.writers)
}
