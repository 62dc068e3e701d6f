// Package provider defines the contract between the sync core and the
// reservation source adapters, plus the closed set of known providers.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/msavelyev/calhub/internal/models"
)

// Kind identifies a reservation provider. It doubles as the vault item key
// and as the reservation id prefix.
type Kind string

const (
	KindCGV              Kind = "cgv"
	KindMegabox          Kind = "megabox"
	KindKobus            Kind = "kobus"
	KindBustago          Kind = "bustago"
	KindNaverReservation Kind = "naver_reservation"
	KindCatchTable       Kind = "catch_table"
)

// Kinds lists every known provider, in registration order.
var Kinds = []Kind{
	KindCGV,
	KindMegabox,
	KindKobus,
	KindBustago,
	KindNaverReservation,
	KindCatchTable,
}

// ParseKind validates a provider key supplied from the outside.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// EventID builds a canonical reservation id from a provider-native one.
func (k Kind) EventID(nativeID string) string {
	return string(k) + "/" + nativeID
}

// Prefix is the id namespace owned by the provider.
func (k Kind) Prefix() string {
	return string(k) + "/"
}

// Owns reports whether the reservation id belongs to this provider.
func (k Kind) Owns(eventID string) bool {
	return strings.HasPrefix(eventID, k.Prefix())
}

// Adapter fetches the current reservation set from one provider.
//
// Fetch receives the user's decrypted credential JSON and returns every
// reservation currently visible at the source, ids already namespaced with
// the adapter's Kind prefix, wall-clock fields already in the configured
// reference timezone. A failed fetch wraps common.ErrFetchFailed.
type Adapter interface {
	Kind() Kind

	Fetch(ctx context.Context, creds []byte) ([]models.Event, error)

	// CancelByAbsence reports whether the source is exhaustive enough that a
	// reservation missing from a successful fetch can be treated as
	// cancelled. Adapters whose listings paginate or expire early must
	// return false.
	CancelByAbsence() bool
}

// Registry holds the wired adapters in a stable order.
type Registry struct {
	adapters []Adapter
	byKind   map[Kind]Adapter
}

// NewRegistry wires the given adapters. Registering the same Kind twice is a
// programming error and panics.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byKind: make(map[Kind]Adapter, len(adapters))}
	for _, a := range adapters {
		if _, dup := r.byKind[a.Kind()]; dup {
			panic(fmt.Sprintf("provider %q registered twice", a.Kind()))
		}
		r.byKind[a.Kind()] = a
		r.adapters = append(r.adapters, a)
	}
	return r
}

// All returns the adapters in registration order.
func (r *Registry) All() []Adapter {
	return r.adapters
}

// Get returns the adapter for the kind, or nil.
func (r *Registry) Get(kind Kind) Adapter {
	return r.byKind[kind]
}
