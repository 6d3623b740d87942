// Package envelope implements the symmetric encryption envelope used by the
// Pokepay partner API.
//
// Every request and response body exchanged with the partner API is a JSON
// document encrypted with AES-CBC under a shared secret and carried as an
// unpadded base64url string.
//
// # Wire format
//
// The sender draws a random 16-byte IV, prepends one all-zero block to the
// PKCS7-padded plaintext and CBC-encrypts the whole buffer. The IV itself is
// never transmitted: the first ciphertext block (the encryption of the zero
// block) is sent in its place and the receiver uses it as the IV for the
// remaining blocks.
//
//	C0 ‖ C1 ‖ … ‖ Cn  where  C0 = AES(k, IV ⊕ 0¹²⁸)
//
// The server decrypts exactly this layout, so the construction must not be
// changed to a conventional IV-prefixed scheme.
//
// # Basic Usage
//
//	key, err := envelope.ParseKey(secret)
//	ct, err := envelope.Encrypt(`{"message":"hello"}`, key)
//	pt, err := envelope.Decrypt(ct, key)
//
// A Cipher binds a key to an entropy source and is safe for concurrent use:
//
//	c := envelope.NewCipher(key, envelope.WithEntropy(rngSvc))
//	ct, err := c.Encrypt(plaintext)
//
// # Padding
//
// Decryption strips as many trailing bytes as the final byte says and does not
// check the pad bytes themselves. A wrong key therefore usually surfaces as a
// *DecryptionError (pad length beyond the buffer or invalid UTF-8) but can also
// yield garbled text.
package envelope
