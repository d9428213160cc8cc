package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Keyring holds model-provider API keys in one encrypted JSON file so they
// never sit in plain text next to the config. It is obfuscation against
// casual file reads, not a substitute for an OS keychain.
type Keyring struct {
	path string
}

// ErrKeyNotFound is returned by Get for providers with no stored key.
var ErrKeyNotFound = errors.New("secrets: key not found")

// Open returns the keyring at its default location under the user config dir.
func Open() (*Keyring, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("secrets: resolve config dir: %w", err)
	}
	return &Keyring{path: filepath.Join(dir, "spendlog", "credentials.json")}, nil
}

// OpenAt returns a keyring backed by an explicit file. Tests use this.
func OpenAt(path string) *Keyring {
	return &Keyring{path: path}
}

type keyringFile struct {
	Keys map[string]string `json:"keys"` // provider -> base64(nonce || ciphertext)
}

// Set stores or replaces the key for a provider.
func (k *Keyring) Set(provider, key string) error {
	provider, err := normProvider(provider)
	if err != nil {
		return err
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("secrets: empty key")
	}

	kf, err := k.read()
	if err != nil {
		return err
	}
	sealed, err := seal([]byte(key))
	if err != nil {
		return err
	}
	if kf.Keys == nil {
		kf.Keys = map[string]string{}
	}
	kf.Keys[provider] = base64.StdEncoding.EncodeToString(sealed)
	return k.write(kf)
}

// Get returns the stored key for a provider.
func (k *Keyring) Get(provider string) (string, error) {
	provider, err := normProvider(provider)
	if err != nil {
		return "", err
	}
	kf, err := k.read()
	if err != nil {
		return "", err
	}
	enc, ok := kf.Keys[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrKeyNotFound, provider)
	}
	sealed, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return "", fmt.Errorf("secrets: corrupt entry for %s: %w", provider, err)
	}
	plain, err := open(sealed)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt key for %s: %w", provider, err)
	}
	return string(plain), nil
}

// Delete removes the stored key for a provider. Deleting a provider that has
// no key reports ErrKeyNotFound so callers can tell the user nothing changed.
func (k *Keyring) Delete(provider string) error {
	provider, err := normProvider(provider)
	if err != nil {
		return err
	}
	kf, err := k.read()
	if err != nil {
		return err
	}
	if _, ok := kf.Keys[provider]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, provider)
	}
	delete(kf.Keys, provider)
	return k.write(kf)
}

// Providers lists the providers that have a stored key, sorted.
func (k *Keyring) Providers() ([]string, error) {
	kf, err := k.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(kf.Keys))
	for name := range kf.Keys {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func normProvider(provider string) (string, error) {
	provider = strings.TrimSpace(strings.ToLower(provider))
	if provider == "" {
		return "", errors.New("secrets: provider required")
	}
	return provider, nil
}

func (k *Keyring) read() (keyringFile, error) {
	var kf keyringFile
	data, err := os.ReadFile(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return keyringFile{}, nil
		}
		return kf, fmt.Errorf("secrets: read %s: %w", k.path, err)
	}
	if err := json.Unmarshal(data, &kf); err != nil {
		return kf, fmt.Errorf("secrets: parse %s: %w", k.path, err)
	}
	return kf, nil
}

func (k *Keyring) write(kf keyringFile) error {
	if err := os.MkdirAll(filepath.Dir(k.path), 0o700); err != nil {
		return fmt.Errorf("secrets: mkdir: %w", err)
	}
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return err
	}
	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("secrets: write: %w", err)
	}
	return os.Rename(tmp, k.path)
}

// The cipher key is derived from stable per-user facts, so the file is bound
// to the account that wrote it without any passphrase prompt.
func cipherKey() []byte {
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	sum := sha256.Sum256([]byte("spendlog/" + runtime.GOOS + "/" + user))
	return sum[:]
}

func newGCM() (cipher.AEAD, error) {
	block, err := aes.NewCipher(cipherKey())
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func seal(plain []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(sealed []byte) ([]byte, error) {
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():], nil)
}
