// Copyright 2023 The NLP Odyssey Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package customop

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/nlpodyssey/customop/ortapi"
)

// Domain is a host custom operator domain.
//
// A Domain attached to session options must not be released before every
// session created with those options is closed.
type Domain struct {
	api    ortapi.API
	handle ortapi.CustomOpDomain
	name   string
	// ops keeps the added vtables reachable for the lifetime of the domain.
	ops []*ortapi.CustomOp
}

// CreateDomain creates a new empty domain.
func CreateDomain(api ortapi.API, name string) (*Domain, error) {
	h, st := api.CreateCustomOpDomain(name)
	if err := statusToError(api, st); err != nil {
		return nil, errors.Wrapf(err, "failed to create domain %q", name)
	}
	return &Domain{api: api, handle: h, name: name}, nil
}

// Name returns the domain name.
func (d *Domain) Name() string {
	return d.name
}

// Add adds an operator vtable to the domain.
func (d *Domain) Add(op *ortapi.CustomOp) error {
	if d.handle == 0 {
		return errors.Errorf("domain %q is released", d.name)
	}
	if err := statusToError(d.api, d.api.CustomOpDomainAdd(d.handle, op)); err != nil {
		return errors.Wrapf(err, "failed to add %q to domain %q", op.GetName(), d.name)
	}
	d.ops = append(d.ops, op)
	return nil
}

// AddTo attaches the domain to session options.
func (d *Domain) AddTo(options ortapi.SessionOptions) error {
	if d.handle == 0 {
		return errors.Errorf("domain %q is released", d.name)
	}
	if err := statusToError(d.api, d.api.AddCustomOpDomain(options, d.handle)); err != nil {
		return errors.Wrapf(err, "failed to add domain %q to session options", d.name)
	}
	klog.V(2).InfoS("Custom operator domain registered", "domain", d.name, "ops", len(d.ops))
	return nil
}

// Release releases the host domain. It is a no-op on a released domain.
func (d *Domain) Release() {
	if d.handle == 0 {
		return
	}
	d.api.ReleaseCustomOpDomain(d.handle)
	d.handle = 0
	d.ops = nil
}
