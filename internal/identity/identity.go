// Package identity derives and persists the pseudonymous per-client id
// and the remembered display name. The id only distinguishes UI
// affordances ("is this message mine"); it is not a credential.
package identity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store is the narrow local persistence collaborator: a durable
// namespaced key-value store (browser storage, a cookie jar, a map in
// tests).
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

const (
	keyClientID = "chousei_browser_id"
	keyUserName = "chousei_user_name"
	keyHistory  = "chousei_history"
)

type Manager struct {
	kv Store
}

func NewManager(kv Store) *Manager {
	return &Manager{kv: kv}
}

// ClientID returns the stored client id, generating and persisting one
// on first use. The format is a time suffix plus a random suffix;
// collision probability is negligible and cryptographic strength is not
// required.
func (m *Manager) ClientID() (string, error) {
	if id, ok := m.kv.Get(keyClientID); ok && id != "" {
		return id, nil
	}
	id := newClientID()
	if err := m.kv.Set(keyClientID, id); err != nil {
		return "", err
	}
	return id, nil
}

func newClientID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strconv.FormatInt(time.Now().UnixMilli(), 36) + random[:16]
}

func (m *Manager) RememberedName() (string, bool) {
	name, ok := m.kv.Get(keyUserName)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// RememberName persists the display name for the next form pre-fill.
// Call it only after a submission succeeded; failure paths must leave
// the previous name in place.
func (m *Manager) RememberName(name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	return m.kv.Set(keyUserName, name)
}

// MapStore is an in-memory Store for tests and non-browser consumers.
type MapStore map[string]string

func NewMapStore() MapStore {
	return MapStore{}
}

func (m MapStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapStore) Set(key, value string) error {
	m[key] = value
	return nil
}
