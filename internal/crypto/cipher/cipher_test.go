package cipher

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/coregate/gateway/internal/crypto/domain"
	cryptoService "github.com/coregate/gateway/internal/crypto/service"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptionDecryptionService_Roundtrip(t *testing.T) {
	manager := cryptoService.NewAEADManager()

	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			key := randomKey(t)

			enc, err := NewEncryptionService(manager, key, alg)
			require.NoError(t, err)
			dec, err := NewDecryptionService(manager, key, alg)
			require.NoError(t, err)

			encoded, err := enc.Encrypt("hello, gateway")
			require.NoError(t, err)

			plaintext, err := dec.Decrypt(encoded)
			require.NoError(t, err)
			assert.Equal(t, "hello, gateway", plaintext)
		})
	}
}

func TestEncryptionService_Encrypt_NonceIsUnique(t *testing.T) {
	manager := cryptoService.NewAEADManager()
	key := randomKey(t)

	enc, err := NewEncryptionService(manager, key, cryptoDomain.AESGCM)
	require.NoError(t, err)

	first, err := enc.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := enc.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestDecryptionService_Decrypt_TamperedCiphertext(t *testing.T) {
	manager := cryptoService.NewAEADManager()
	key := randomKey(t)

	enc, err := NewEncryptionService(manager, key, cryptoDomain.AESGCM)
	require.NoError(t, err)
	dec, err := NewDecryptionService(manager, key, cryptoDomain.AESGCM)
	require.NoError(t, err)

	encoded, err := enc.Encrypt("sensitive value")
	require.NoError(t, err)

	raw := []byte(encoded)
	raw[len(raw)-1] ^= 1

	_, err = dec.Decrypt(string(raw))
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidCiphertext)
}

func TestDecryptionService_Decrypt_WrongKeyFails(t *testing.T) {
	manager := cryptoService.NewAEADManager()

	enc, err := NewEncryptionService(manager, randomKey(t), cryptoDomain.AESGCM)
	require.NoError(t, err)
	dec, err := NewDecryptionService(manager, randomKey(t), cryptoDomain.AESGCM)
	require.NoError(t, err)

	encoded, err := enc.Encrypt("sensitive value")
	require.NoError(t, err)

	_, err = dec.Decrypt(encoded)
	assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
}

func TestDecryptionService_Decrypt_InvalidBase64(t *testing.T) {
	manager := cryptoService.NewAEADManager()
	dec, err := NewDecryptionService(manager, randomKey(t), cryptoDomain.AESGCM)
	require.NoError(t, err)

	_, err = dec.Decrypt("not valid base64!!")
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidCiphertext)
}

func TestDecryptionService_Decrypt_TooShort(t *testing.T) {
	manager := cryptoService.NewAEADManager()
	dec, err := NewDecryptionService(manager, randomKey(t), cryptoDomain.AESGCM)
	require.NoError(t, err)

	_, err = dec.Decrypt("YQ==") // one byte, shorter than any nonce
	assert.ErrorIs(t, err, cryptoDomain.ErrInvalidCiphertext)
}

func TestEncryptionService_Close_WipesKey(t *testing.T) {
	manager := cryptoService.NewAEADManager()
	key := randomKey(t)

	enc, err := NewEncryptionService(manager, key, cryptoDomain.AESGCM)
	require.NoError(t, err)

	enc.Close()
	for _, b := range enc.key {
		assert.Equal(t, byte(0), b)
	}
}
