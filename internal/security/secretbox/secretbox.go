// Package secretbox cifra secretos de conexión (passwords del catálogo de
// tenants) con NaCl secretbox (XSalsa20-Poly1305).
//
// Formato: "enc:" + base64(nonce || sealed).
package secretbox

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// EnvKey variable con la clave maestra (base64 o hex, 32 bytes).
	EnvKey = "TENANTDB_SECRETBOX_KEY"
	// Prefix marca un valor cifrado.
	Prefix = "enc:"

	keySize   = 32
	nonceSize = 24
)

var (
	ErrNoKey     = errors.New("secretbox: master key not configured")
	ErrMalformed = errors.New("secretbox: malformed ciphertext")
	ErrDecrypt   = errors.New("secretbox: decryption failed")
)

// Box cifra/descifra con una clave fija.
type Box struct {
	key [keySize]byte
}

// New crea un Box con una clave de 32 bytes.
func New(key []byte) (*Box, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("secretbox: key must be %d bytes, got %d", keySize, len(key))
	}
	b := &Box{}
	copy(b.key[:], key)
	return b, nil
}

// ParseKey decodifica una clave en base64 (std o raw) o hex.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNoKey
	}
	if k, err := base64.StdEncoding.DecodeString(s); err == nil && len(k) == keySize {
		return k, nil
	}
	if k, err := base64.RawStdEncoding.DecodeString(s); err == nil && len(k) == keySize {
		return k, nil
	}
	if len(s) == 2*keySize {
		if k, err := hex.DecodeString(s); err == nil {
			return k, nil
		}
	}
	return nil, fmt.Errorf("secretbox: key must decode to %d bytes (base64 or hex); generate one with: openssl rand -base64 32", keySize)
}

// Encrypt cifra plain y devuelve "enc:<base64>".
func (b *Box) Encrypt(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("secretbox: nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], []byte(plain), &nonce, &b.key)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt descifra un valor "enc:<base64>".
func (b *Box) Decrypt(s string) (string, error) {
	raw, ok := strings.CutPrefix(s, Prefix)
	if !ok {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformed, Prefix)
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", fmt.Errorf("%w: too short", ErrMalformed)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	out, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &b.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(out), nil
}

// Reveal descifra si el valor está cifrado; si no, lo devuelve tal cual.
func (b *Box) Reveal(s string) (string, error) {
	if !IsEncrypted(s) {
		return s, nil
	}
	return b.Decrypt(s)
}

// IsEncrypted reporta si s tiene el prefijo de valor cifrado.
func IsEncrypted(s string) bool { return strings.HasPrefix(s, Prefix) }

// --- Box global cargado desde el entorno ---

var (
	defaultOnce sync.Once
	defaultBox  *Box
	defaultErr  error
	defaultMu   sync.RWMutex
)

// Default retorna el Box construido desde TENANTDB_SECRETBOX_KEY.
func Default() (*Box, error) {
	defaultOnce.Do(func() {
		k, err := ParseKey(os.Getenv(EnvKey))
		if err != nil {
			if errors.Is(err, ErrNoKey) {
				err = fmt.Errorf("%w: set %s", ErrNoKey, EnvKey)
			}
			defaultErr = err
			return
		}
		b, err := New(k)
		defaultMu.Lock()
		defaultBox, defaultErr = b, err
		defaultMu.Unlock()
	})
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultBox, defaultErr
}

// Ready expone si la clave global está disponible (healthchecks/config print).
func Ready() bool {
	b, err := Default()
	return err == nil && b != nil
}

// Encrypt cifra con el Box global.
func Encrypt(plain string) (string, error) {
	b, err := Default()
	if err != nil {
		return "", err
	}
	return b.Encrypt(plain)
}

// Reveal descifra con el Box global; valores sin prefijo se devuelven tal cual
// y no requieren clave.
func Reveal(s string) (string, error) {
	if !IsEncrypted(s) {
		return s, nil
	}
	b, err := Default()
	if err != nil {
		return "", err
	}
	return b.Decrypt(s)
}

// UnsafeResetForTests borra el Box global. Usar sólo en tests.
func UnsafeResetForTests() {
	defaultMu.Lock()
	defaultBox, defaultErr = nil, nil
	defaultMu.Unlock()
	defaultOnce = sync.Once{}
}
