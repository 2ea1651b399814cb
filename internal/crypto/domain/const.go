package domain

// Algorithm represents the AEAD cipher used to protect a data encryption key
// or the data it in turn protects.
//
// Both supported algorithms provide Authenticated Encryption with Associated
// Data: they guard confidentiality and authenticity at once, so a tampered
// ciphertext fails to decrypt rather than decrypting to garbage.
type Algorithm string

const (
	// AESGCM is AES-256-GCM: 256-bit key, 12-byte nonce, 16-byte tag.
	// Preferred on hardware with AES-NI acceleration.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305: 256-bit key, 12-byte nonce, 16-byte tag.
	// Preferred on platforms without AES hardware acceleration.
	ChaCha20 Algorithm = "chacha20-poly1305"
)
