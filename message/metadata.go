// File: message/metadata.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package message

import "sync/atomic"

// Metadata is a refcounted, immutable property-name to string-value map
// attached to a Message (spec §4.3). Immutability lets many Messages share
// one Metadata without copying or locking.
type Metadata struct {
	props map[string]string
	refs  int32
}

// NewMetadata builds a Metadata with an initial refcount of 1, copying props
// so later mutation of the caller's map cannot affect shared readers.
func NewMetadata(props map[string]string) *Metadata {
	cp := make(map[string]string, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return &Metadata{props: cp, refs: 1}
}

func (md *Metadata) incref() { atomic.AddInt32(&md.refs, 1) }

func (md *Metadata) decref() { atomic.AddInt32(&md.refs, -1) }

// Get returns the value for name and whether it was present.
func (md *Metadata) Get(name string) (string, bool) {
	v, ok := md.props[name]
	return v, ok
}

// Each calls fn for every property. fn must not retain the map.
func (md *Metadata) Each(fn func(name, value string)) {
	for k, v := range md.props {
		fn(k, v)
	}
}

// Len returns the number of properties.
func (md *Metadata) Len() int { return len(md.props) }
