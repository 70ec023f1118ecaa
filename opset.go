// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"maps"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/nlpodyssey/customop/ortapi"
)

// OpSet is a named set of operator vtables, registered together into one
// host domain.
type OpSet struct {
	domain string
	ops    map[string]*ortapi.CustomOp

	mu         sync.Mutex
	registered []*Domain
}

// NewOpSet returns an empty OpSet for the given domain name.
func NewOpSet(domain string) *OpSet {
	return &OpSet{
		domain: domain,
		ops:    make(map[string]*ortapi.CustomOp),
	}
}

// Domain returns the domain name.
func (s *OpSet) Domain() string {
	return s.domain
}

// Add adds op to the set. Names must be unique.
func (s *OpSet) Add(op *ortapi.CustomOp) error {
	name := op.GetName()
	if _, ok := s.ops[name]; ok {
		return errors.Errorf("operator %q already in domain %q", name, s.domain)
	}
	s.ops[name] = op
	return nil
}

// MustAdd is like Add but panics on duplicates.
func (s *OpSet) MustAdd(ops ...*ortapi.CustomOp) *OpSet {
	for _, op := range ops {
		if err := s.Add(op); err != nil {
			panic(err)
		}
	}
	return s
}

// Get returns the operator with the given name.
func (s *OpSet) Get(name string) (*ortapi.CustomOp, bool) {
	op, ok := s.ops[name]
	return op, ok
}

// Names returns the sorted operator names.
func (s *OpSet) Names() []string {
	return slices.Sorted(maps.Keys(s.ops))
}

// Register creates a domain holding every operator of the set and
// attaches it to the session options. The caller owns the returned
// Domain. On failure nothing stays registered.
func (s *OpSet) Register(api ortapi.API, options ortapi.SessionOptions) (*Domain, error) {
	d, err := CreateDomain(api, s.domain)
	if err != nil {
		return nil, err
	}
	var errs error
	for _, name := range s.Names() {
		errs = multierr.Append(errs, d.Add(s.ops[name]))
	}
	if errs == nil {
		errs = d.AddTo(options)
	}
	if errs != nil {
		d.Release()
		return nil, errs
	}
	return d, nil
}

// RegisterStatus is like Register, but reports failures as a host status
// and keeps the domain alive until Close. It is meant for the plugin
// registration entry point.
func (s *OpSet) RegisterStatus(api ortapi.API, options ortapi.SessionOptions) ortapi.Status {
	d, err := s.Register(api, options)
	if err != nil {
		return errorToStatus(api, s.domain, err)
	}
	s.mu.Lock()
	s.registered = append(s.registered, d)
	s.mu.Unlock()
	return 0
}

// Close releases the domains registered by RegisterStatus.
func (s *OpSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.registered {
		d.Release()
	}
	s.registered = nil
	return nil
}
