package document

import (
	"fmt"
)

// Document is a search hit as returned by the backend: identity plus an
// open-ended source mapping. It is never cached beyond a single request.
type Document struct {
	id     string
	index  string
	source map[string]any
}

// New validates and creates a Document.
func New(id, index string, source map[string]any) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("document ID is required")
	}
	if index == "" {
		return Document{}, fmt.Errorf("document index is required")
	}
	return Document{id: id, index: index, source: source}, nil
}

// Reconstruct creates a Document without validation (wire hydration).
func Reconstruct(id, index string, source map[string]any) Document {
	return Document{id: id, index: index, source: source}
}

// ID returns the document identifier (_id).
func (d *Document) ID() string { return d.id }

// Index returns the concrete index the document lives in (_index).
func (d *Document) Index() string { return d.index }

// Source returns the raw document fields (_source).
func (d *Document) Source() map[string]any { return d.source }

// Values returns the template lookup mapping {_id, _index, ...source}.
// Source fields are spread last, so a source key named _id wins.
func (d *Document) Values() map[string]any {
	v := make(map[string]any, len(d.source)+2)
	v["_id"] = d.id
	v["_index"] = d.index
	for k, val := range d.source {
		v[k] = val
	}
	return v
}
