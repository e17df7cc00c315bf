package identity

import (
	"errors"
	"sync"
)

var (
	ErrValidation        = errors.New("name, email, and phone are required")
	ErrDuplicateIdentity = errors.New("user already exists")
)

// Identity is a registered user. Key is the contact address used for routing.
type Identity struct {
	Key         string `json:"email"`
	DisplayName string `json:"name"`
	ContactInfo string `json:"phone"`
}

// Listing is the public view of an identity. Contact info is deliberately
// absent.
type Listing struct {
	DisplayName string `json:"name"`
	Key         string `json:"email"`
}

// Registry holds every identity registered during the process lifetime.
// It only grows.
type Registry struct {
	byKey map[string]*Identity
	order []string
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[string]*Identity),
	}
}

func (r *Registry) Register(key, displayName, contactInfo string) error {
	if key == "" || displayName == "" || contactInfo == "" {
		return ErrValidation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byKey[key]; exists {
		return ErrDuplicateIdentity
	}

	r.byKey[key] = &Identity{
		Key:         key,
		DisplayName: displayName,
		ContactInfo: contactInfo,
	}
	r.order = append(r.order, key)
	return nil
}

func (r *Registry) Lookup(key string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return Identity{}, false
	}
	return *id, true
}

func (r *Registry) Exists(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[key]
	return ok
}

// List returns every identity in registration order.
func (r *Registry) List() []Listing {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listings := make([]Listing, 0, len(r.order))
	for _, key := range r.order {
		id := r.byKey[key]
		listings = append(listings, Listing{
			DisplayName: id.DisplayName,
			Key:         id.Key,
		})
	}
	return listings
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
