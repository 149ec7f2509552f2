package vault

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tradesync/internal/storage"
)

const credentialKey = "credential"

// Cipher is the opaque secure-storage capability (platform keystore or
// equivalent). The vault only depends on its result types.
type Cipher interface {
	Encrypt(plaintext []byte) (ciphertext, iv []byte, err error)
	Decrypt(ciphertext, iv []byte) ([]byte, error)
}

// Credential is the session bearer token. It is owned exclusively by the
// vault and must never be logged or handed to the market data layer.
type Credential struct {
	Token      string    `json:"token"`
	ObtainedAt time.Time `json:"obtained_at"`
}

// envelope is the persisted form: ciphertext plus IV, never plaintext.
type envelope struct {
	Ciphertext []byte `json:"ct"`
	IV         []byte `json:"iv"`
}

// Vault holds the session credential, encrypted at rest. A decrypt failure
// (e.g. key material invalidated by platform policy) is treated as "absent
// credential", forcing re-login rather than crashing.
type Vault struct {
	cipher Cipher
	store  *storage.Keystore

	mu        sync.Mutex
	observers map[int]func(loggedIn bool)
	nextObs   int
}

// New creates a vault backed by the given cipher and keystore.
func New(cipher Cipher, store *storage.Keystore) *Vault {
	return &Vault{
		cipher:    cipher,
		store:     store,
		observers: make(map[int]func(bool)),
	}
}

// Store encrypts and persists the credential, overwriting any prior value.
func (v *Vault) Store(ctx context.Context, cred Credential) error {
	plain, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to encode credential: %w", err)
	}

	ct, iv, err := v.cipher.Encrypt(plain)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	blob, err := json.Marshal(envelope{Ciphertext: ct, IV: iv})
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	if err := v.store.Put(ctx, credentialKey, blob); err != nil {
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	v.notify(true)
	return nil
}

// Current returns the decrypted credential, or false when absent. Absence is
// a normal state (logged out) and never an error. Undecryptable material is
// destroyed and reported as absent.
func (v *Vault) Current(ctx context.Context) (Credential, bool) {
	blob, err := v.store.Get(ctx, credentialKey)
	if err != nil {
		slog.Warn("Credential read failed", slog.Any("error", err))
		return Credential{}, false
	}
	if blob == nil {
		return Credential{}, false
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		slog.Warn("Stored credential is corrupt, clearing")
		v.Clear(ctx)
		return Credential{}, false
	}

	plain, err := v.cipher.Decrypt(env.Ciphertext, env.IV)
	if err != nil {
		// Key material lost or invalidated: force re-login.
		slog.Warn("Credential decrypt failed, clearing", slog.Any("error", err))
		v.Clear(ctx)
		return Credential{}, false
	}

	var cred Credential
	if err := json.Unmarshal(plain, &cred); err != nil {
		slog.Warn("Decrypted credential is corrupt, clearing")
		v.Clear(ctx)
		return Credential{}, false
	}

	return cred, true
}

// Clear destroys the stored credential.
func (v *Vault) Clear(ctx context.Context) {
	if err := v.store.Delete(ctx, credentialKey); err != nil {
		slog.Warn("Credential delete failed", slog.Any("error", err))
	}
	v.notify(false)
}

// OnLoginChange registers a login-state observer and returns its id.
func (v *Vault) OnLoginChange(fn func(loggedIn bool)) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.nextObs++
	v.observers[v.nextObs] = fn
	return v.nextObs
}

// RemoveObserver unregisters a login-state observer.
func (v *Vault) RemoveObserver(id int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.observers, id)
}

func (v *Vault) notify(loggedIn bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, fn := range v.observers {
		fn(loggedIn)
	}
}
