// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package program

import "github.com/google/uuid"

// Instance is one subprogram invocation: a persistent index
// generator plus the identity needed to tell apart distinct
// dynamic instantiations (separate loop iterations, separate
// call sites) of the same subprogram across frames.
//
// The source keys a program instance by the pair (subprogram
// pointer, allocation id); a raw pointer is not a stable,
// printable identity suitable for diagnostics, so this port
// mints a uuid.UUID once, the first time a given dynamic
// instantiation is observed, and carries it in diagnostic
// output instead.
type Instance struct {
	Name         string
	AllocationID uuid.UUID
	Gen          *Generator
}

// Registry tracks one Instance per (subprogram name,
// caller-supplied slot) pair across frames, minting a new
// Instance (with a fresh AllocationID and Generator) the first
// time a slot is seen and reusing it afterward, so that the
// slot's Generator keeps assigning stable ids to the same
// logical nodes/resources frame over frame.
type Registry struct {
	instances map[registryKey]*Instance
}

type registryKey struct {
	name string
	slot int
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[registryKey]*Instance)}
}

// Instantiate returns the Instance for (name, slot), creating
// it on first use.
func (r *Registry) Instantiate(name string, slot int) *Instance {
	key := registryKey{name, slot}
	if inst, ok := r.instances[key]; ok {
		return inst
	}
	inst := &Instance{Name: name, AllocationID: uuid.New(), Gen: NewGenerator()}
	r.instances[key] = inst
	return inst
}

// Forget drops the Instance for (name, slot), e.g. when the
// caller knows a dynamic call site no longer exists (a loop
// bound shrank permanently). A subsequent Instantiate for the
// same key starts a fresh identity and stable-id space.
func (r *Registry) Forget(name string, slot int) {
	delete(r.instances, registryKey{name, slot})
}

// Len reports the number of live instances.
func (r *Registry) Len() int { return len(r.instances) }
