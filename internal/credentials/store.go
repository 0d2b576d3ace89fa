package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

// Credentials is the username/password pair used to log in. Never mutated,
// only replaced by a fresh Save.
type Credentials struct {
	Email    string
	Password string
}

var (
	// ErrNotFound is returned by Load when no credentials file exists yet.
	ErrNotFound = errors.New("credentials file not found")

	// ErrCorrupt is returned when the file exists but cannot be decoded.
	// Callers should fall back to re-prompting instead of aborting.
	ErrCorrupt = errors.New("credentials file is corrupt")
)

const (
	fileMagic  = "CPASS1"
	saltSize   = 16
	pbkdfIters = 4096
	keySize    = 32
)

// appSecret seeds the key derivation; the per-file random salt makes the
// derived key unique per credentials file.
var appSecret = []byte("go-coursera.credentials.v1")

// Store persists one Credentials pair in an encrypted local file.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s Store) Path() string {
	return s.path
}

// Load reads and decrypts the stored pair. ErrNotFound when the file is
// absent, ErrCorrupt when it cannot be decrypted or parsed.
func (s Store) Load() (Credentials, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Credentials{}, ErrNotFound
	}
	if err != nil {
		return Credentials{}, errors.Wrap(err, "read credentials file ["+s.path+"]")
	}

	plain, err := decrypt(raw)
	if err != nil {
		return Credentials{}, errors.Wrap(ErrCorrupt, err.Error())
	}

	email, password, ok := strings.Cut(string(plain), ":")
	if !ok || email == "" {
		return Credentials{}, ErrCorrupt
	}
	return Credentials{Email: email, Password: password}, nil
}

// Save encrypts and writes the pair, replacing any previous file.
func (s Store) Save(c Credentials) error {
	raw, err := encrypt([]byte(c.Email + ":" + c.Password))
	if err != nil {
		return errors.Wrap(err, "encrypt credentials")
	}
	if err = os.WriteFile(s.path, raw, 0600); err != nil {
		return errors.Wrap(err, "write credentials file ["+s.path+"]")
	}
	return nil
}

func encrypt(plain []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	aead, err := newAEAD(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(fileMagic)+saltSize+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, fileMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, nil), nil
}

func decrypt(raw []byte) ([]byte, error) {
	if len(raw) < len(fileMagic)+saltSize || string(raw[:len(fileMagic)]) != fileMagic {
		return nil, errors.New("bad header")
	}
	raw = raw[len(fileMagic):]

	salt, raw := raw[:saltSize], raw[saltSize:]
	aead, err := newAEAD(salt)
	if err != nil {
		return nil, err
	}
	if len(raw) < aead.NonceSize() {
		return nil, errors.New("truncated payload")
	}

	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

func newAEAD(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(appSecret, salt, pbkdfIters, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
