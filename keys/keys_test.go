package keys_test

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ruffel/sshmcp/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		keyType  string
		bits     int
		wantAlgo string
		wantErr  bool
	}{
		{name: "ed25519", keyType: "ed25519", wantAlgo: ssh.KeyAlgoED25519},
		{name: "default type", keyType: "", wantAlgo: ssh.KeyAlgoED25519},
		{name: "rsa", keyType: "RSA", bits: 2048, wantAlgo: ssh.KeyAlgoRSA},
		{name: "rsa too small", keyType: "rsa", bits: 1024, wantErr: true},
		{name: "unknown type", keyType: "dsa", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pair, err := keys.Generate(tt.keyType, tt.bits, "ops@laptop")
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)

			pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(pair.PublicKey))
			require.NoError(t, err)
			assert.Equal(t, tt.wantAlgo, pub.Type())
			assert.Equal(t, "ops@laptop", comment)

			signer, err := ssh.ParsePrivateKey(pair.PrivateKey)
			require.NoError(t, err)
			assert.Equal(t, pub.Marshal(), signer.PublicKey().Marshal(), "private and public halves must match")

			block, _ := pem.Decode(pair.PrivateKey)
			require.NotNil(t, block)
			assert.Equal(t, "OPENSSH PRIVATE KEY", block.Type)
		})
	}
}

func TestGenerate_Unique(t *testing.T) {
	t.Parallel()

	a, err := keys.GenerateEd25519("")
	require.NoError(t, err)

	b, err := keys.GenerateEd25519("")
	require.NoError(t, err)

	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
	assert.NotEqual(t, a.PrivateKey, b.PrivateKey)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	pair, err := keys.GenerateEd25519("")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(pair.Fingerprint, "SHA256:"))
	assert.NotContains(t, pair.Fingerprint, "=")
	// 32 byte digest, unpadded base64.
	assert.Len(t, strings.TrimPrefix(pair.Fingerprint, "SHA256:"), 43)
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	pair, err := keys.GenerateEd25519("deploy")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nested", "id_ed25519")
	require.NoError(t, keys.Save(pair, path))

	pubData, err := os.ReadFile(path + ".pub")
	require.NoError(t, err)
	assert.Equal(t, pair.PublicKey+"\n", string(pubData))

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		info, err = os.Stat(path + ".pub")
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	}

	loaded, err := keys.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, keys.TypeEd25519, loaded.Type)
	assert.Equal(t, pair.Fingerprint, loaded.Fingerprint)
	assert.Equal(t, pair.PrivateKey, loaded.PrivateKey)

	_, err = keys.Load(path, "unused")
	require.NoError(t, err, "a passphrase for an unencrypted key is ignored")
}

func TestSave_TightensExistingMode(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}

	path := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	pair, err := keys.GenerateEd25519("")
	require.NoError(t, err)
	require.NoError(t, keys.Save(pair, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_Encrypted(t *testing.T) {
	t.Parallel()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	sshPub, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)

	block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte("s3cret"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "enc")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))

	_, err = keys.Load(path, "")
	var missing *ssh.PassphraseMissingError
	require.ErrorAs(t, err, &missing)

	_, err = keys.Load(path, "wrong")
	require.Error(t, err)

	loaded, err := keys.Load(path, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, ssh.FingerprintSHA256(sshPub), loaded.Fingerprint)
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := keys.Load(filepath.Join(t.TempDir(), "absent"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}
