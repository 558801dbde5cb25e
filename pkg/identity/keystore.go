package identity

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

	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
)

// DefaultDir is where keys are stored unless another directory is given.
const DefaultDir = "configs/keystore"

// Entry is the JSON file stored for every key
type Entry struct {
	Address      string `json:"address"`
	Label        string `json:"label,omitempty"`
	EncryptedKey string `json:"encrypted_key"`
	Version      int    `json:"version"`
}

// Keystore keeps password-encrypted ed25519 identities on disk. Vault,
// strategy, treasury and role holder addresses are all such identities.
type Keystore struct {
	dir string
}

func NewKeystore(dir string) *Keystore {
	if dir == "" {
		dir = DefaultDir
	}
	return &Keystore{dir: dir}
}

// Generate creates a new key pair
func (ks *Keystore) Generate() types.Account {
	return types.NewAccount()
}

// Address returns an account's public key in the vault's address type.
func Address(account types.Account) solana.PublicKey {
	return solana.PublicKeyFromBytes(account.PublicKey.Bytes())
}

// Save encrypts account with password and writes <address>.json. It returns
// the file path.
func (ks *Keystore) Save(account types.Account, label, password string) (string, error) {
	encrypted, err := Encrypt(account.PrivateKey, password)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt private key: %w", err)
	}

	address := account.PublicKey.ToBase58()
	data, err := json.MarshalIndent(Entry{
		Address:      address,
		Label:        label,
		EncryptedKey: encrypted,
		Version:      1,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal keystore entry: %w", err)
	}

	if err := os.MkdirAll(ks.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create keystore directory: %w", err)
	}
	path := filepath.Join(ks.dir, address+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write keystore entry: %w", err)
	}
	return path, nil
}

// Load reads and decrypts the key stored for address.
func (ks *Keystore) Load(address, password string) (types.Account, error) {
	data, err := os.ReadFile(filepath.Join(ks.dir, address+".json"))
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to read keystore entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return types.Account{}, fmt.Errorf("failed to unmarshal keystore entry: %w", err)
	}
	if entry.Address != address {
		return types.Account{}, fmt.Errorf("address mismatch: expected %s, got %s", address, entry.Address)
	}

	privateKey, err := Decrypt(entry.EncryptedKey, password)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to decrypt private key: %w", err)
	}
	account, err := types.AccountFromBytes(privateKey)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to create account from private key: %w", err)
	}
	if account.PublicKey.ToBase58() != address {
		return types.Account{}, fmt.Errorf("stored key does not match address %s", address)
	}
	return account, nil
}

// List returns the entries in the keystore directory.
func (ks *Keystore) List() ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(ks.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", p, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Encrypt seals a private key with AES-256-GCM. The nonce is prepended to the
// ciphertext.
func Encrypt(privateKey []byte, password string) (string, error) {
	gcm, err := newGCM(password)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, privateKey, nil)), nil
}

// Decrypt opens a key sealed by Encrypt.
func Decrypt(encryptedKey, password string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	gcm, err := newGCM(password)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(password string) (cipher.AEAD, error) {
	key := sha256.Sum256([]byte(password))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
