package credential

import (
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "livectl"
	keyAccessToken  = "access-token"
	keyRefreshToken = "refresh-token"
)

// KeyringStore layers the OS keyring over a FileStore: cookies and metadata
// stay in the JSON file, the token pair moves into the keyring. When no
// keyring backend is available (headless Linux, stripped-down CI) it degrades
// to the plain file store and logs once.
type KeyringStore struct {
	file *FileStore

	once     sync.Once
	degraded bool
}

// NewKeyringStore wraps a file store with keyring-backed token storage.
func NewKeyringStore(file *FileStore) *KeyringStore {
	return &KeyringStore{file: file}
}

func (s *KeyringStore) Load() (*Credential, error) {
	data, err := s.file.loadRaw()
	if err != nil || data == nil {
		return data, err
	}
	if data.Valid() {
		// Tokens were stored inline (degraded save, or pre-keyring file).
		return data, nil
	}

	access, errA := keyring.Get(keyringService, data.AccountID+"/"+keyAccessToken)
	refresh, errR := keyring.Get(keyringService, data.AccountID+"/"+keyRefreshToken)
	if errA != nil || errR != nil {
		slog.Warn("keyring lookup failed, treating as logged out", "account", data.AccountID)
		return nil, nil
	}
	data.AccessToken = access
	data.RefreshToken = refresh
	if !data.Valid() {
		return nil, nil
	}
	return data, nil
}

func (s *KeyringStore) Save(cred *Credential) error {
	if !cred.Valid() {
		return s.file.Save(cred) // reuse the file store's validation error
	}
	if s.degraded {
		return s.file.Save(cred)
	}

	if err := keyring.Set(keyringService, cred.AccountID+"/"+keyAccessToken, cred.AccessToken); err != nil {
		s.noteDegraded(err)
		return s.file.Save(cred)
	}
	if err := keyring.Set(keyringService, cred.AccountID+"/"+keyRefreshToken, cred.RefreshToken); err != nil {
		s.noteDegraded(err)
		return s.file.Save(cred)
	}

	stripped := cred.Clone()
	stripped.AccessToken = ""
	stripped.RefreshToken = ""
	return s.file.saveRaw(stripped)
}

func (s *KeyringStore) Clear() error {
	if data, err := s.file.loadRaw(); err == nil && data != nil && data.AccountID != "" {
		keyring.Delete(keyringService, data.AccountID+"/"+keyAccessToken)
		keyring.Delete(keyringService, data.AccountID+"/"+keyRefreshToken)
	}
	return s.file.Clear()
}

func (s *KeyringStore) noteDegraded(err error) {
	s.once.Do(func() {
		slog.Warn("keyring unavailable, falling back to file storage", "error", err)
	})
	s.degraded = true
}
