// Package keys generates, loads and saves SSH key pairs in OpenSSH format.
package keys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Key types accepted by Generate.
const (
	TypeEd25519 = "ed25519"
	TypeRSA     = "rsa"
)

// RSA key sizes.
const (
	DefaultRSABits = 4096
	MinRSABits     = 2048
)

// ErrUnsupportedType is returned for key types other than ed25519 and rsa.
var ErrUnsupportedType = errors.New("unsupported key type")

// Pair is a serialized key pair.
type Pair struct {
	Type        string // ed25519 or rsa
	PrivateKey  []byte // OpenSSH PEM
	PublicKey   string // authorized_keys line, including the comment
	Fingerprint string // SHA256:<base64, unpadded>
	Comment     string
}

// Generate creates a key pair of the given type. bits is only used for RSA
// and defaults to DefaultRSABits when zero.
func Generate(keyType string, bits int, comment string) (*Pair, error) {
	switch strings.ToLower(keyType) {
	case "", TypeEd25519:
		return GenerateEd25519(comment)
	case TypeRSA:
		return GenerateRSA(bits, comment)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, keyType)
	}
}

// GenerateEd25519 creates an Ed25519 key pair.
func GenerateEd25519(comment string) (*Pair, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	return newPair(TypeEd25519, priv, comment)
}

// GenerateRSA creates an RSA key pair of bits length.
func GenerateRSA(bits int, comment string) (*Pair, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}

	if bits < MinRSABits {
		return nil, fmt.Errorf("rsa key size %d is below the %d bit minimum", bits, MinRSABits)
	}

	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	return newPair(TypeRSA, priv, comment)
}

func newPair(keyType string, priv crypto.Signer, comment string) (*Pair, error) {
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	pub, err := ssh.NewPublicKey(priv.Public())
	if err != nil {
		return nil, fmt.Errorf("create ssh public key: %w", err)
	}

	return &Pair{
		Type:        keyType,
		PrivateKey:  pem.EncodeToMemory(block),
		PublicKey:   authorizedKey(pub, comment),
		Fingerprint: Fingerprint(pub),
		Comment:     comment,
	}, nil
}

// Load reads a private key file and derives its public half. passphrase is
// used only when the key is encrypted.
func Load(path, passphrase string) (*Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	raw, err := ssh.ParseRawPrivateKey(data)

	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) && passphrase != "" {
		raw, err = ssh.ParseRawPrivateKeyWithPassphrase(data, []byte(passphrase))
	}

	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}

	signer, err := ssh.NewSignerFromKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", path, err)
	}

	pub := signer.PublicKey()

	return &Pair{
		Type:        typeName(pub),
		PrivateKey:  data,
		PublicKey:   authorizedKey(pub, ""),
		Fingerprint: Fingerprint(pub),
	}, nil
}

// Save writes the private key to path with mode 0600 and the public key to
// path + ".pub" with mode 0644, creating parent directories as needed.
func Save(p *Pair, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}

	if err := os.WriteFile(path, p.PrivateKey, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod private key: %w", err)
	}

	if err := os.WriteFile(path+".pub", []byte(p.PublicKey+"\n"), 0o644); err != nil { //nolint:gosec // public key
		return fmt.Errorf("write public key: %w", err)
	}

	return nil
}

// Fingerprint returns the OpenSSH SHA256 fingerprint of pub.
func Fingerprint(pub ssh.PublicKey) string {
	return ssh.FingerprintSHA256(pub)
}

func authorizedKey(pub ssh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if comment != "" {
		line += " " + comment
	}

	return line
}

func typeName(pub ssh.PublicKey) string {
	switch pub.Type() {
	case ssh.KeyAlgoED25519:
		return TypeEd25519
	case ssh.KeyAlgoRSA:
		return TypeRSA
	default:
		return pub.Type()
	}
}
