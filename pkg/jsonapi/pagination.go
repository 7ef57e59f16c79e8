package jsonapi

import (
	"context"
)

// PageIterator walks a collection page by page. Every page is an
// independent Paginate call on a copy of the template query state.
type PageIterator struct {
	ctx      context.Context
	builder  *Builder
	template *QueryState
	size     int
	number   int
	done     bool
	err      error
}

// NewPageIterator iterates the collection described by query, starting at
// page 1. The query itself is not dispatched or modified.
func NewPageIterator(ctx context.Context, query *Query, size int) *PageIterator {
	return &PageIterator{
		ctx:      ctx,
		builder:  query.builder,
		template: query.state.Clone(),
		size:     size,
		number:   1,
		err:      query.err,
	}
}

// HasNext reports whether another page may be fetched.
func (it *PageIterator) HasNext() bool {
	return !it.done && it.err == nil
}

// PageNumber returns the number of the page the next call fetches.
func (it *PageIterator) PageNumber() int {
	return it.number
}

// Next fetches the next page. Iteration ends after a page without a next
// link or without resources.
func (it *PageIterator) Next() (*Document, error) {
	if it.err != nil {
		return nil, it.err
	}

	if it.done {
		return nil, ErrNoMorePages
	}

	query := &Query{builder: it.builder, state: it.template.Clone()}

	doc, err := query.Paginate(it.ctx, it.size, it.number)
	if err != nil {
		it.err = err

		return nil, err
	}

	it.number++

	resources, err := doc.Resources()
	if err != nil || len(resources) == 0 || doc.Links.Next() == "" {
		it.done = true
	}

	return doc, nil
}

// FetchAllPages collects the resources of every page.
func FetchAllPages(ctx context.Context, query *Query, size int) ([]ResourceObject, error) {
	iterator := NewPageIterator(ctx, query, size)
	all := make([]ResourceObject, 0)

	for iterator.HasNext() {
		doc, err := iterator.Next()
		if err != nil {
			return nil, err
		}

		resources, err := doc.Resources()
		if err != nil {
			return nil, err
		}

		all = append(all, resources...)
	}

	return all, nil
}
