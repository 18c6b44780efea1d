package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptRejectsWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "*******")
	assert.Error(t, err)
}

func TestEncryptRejectsBadKey(t *testing.T) {
	_, err := EncryptKey("not-hex", "hunter2")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "hunter2") // too short
	assert.Error(t, err)

	_, err = EncryptKey(testKeyHex, "")
	assert.Error(t, err)
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyFromEncryptedFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}

func TestSignerDerivesAddressAndSigns(t *testing.T) {
	signer, err := NewSigner(testKeyHex)
	require.NoError(t, err)

	// Well-known address for this key.
	assert.Equal(t, "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23", signer.Address().Hex())

	sig, err := signer.SignAction([]byte(`{"type":"order"}`), 42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig.R, "0x"))
	assert.True(t, strings.HasPrefix(sig.S, "0x"))
	assert.Contains(t, []byte{27, 28}, sig.V)

	// Same payload and nonce sign deterministically.
	again, err := signer.SignAction([]byte(`{"type":"order"}`), 42)
	require.NoError(t, err)
	assert.Equal(t, sig, again)
}
