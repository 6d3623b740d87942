package envelope

// DecryptionError reports ciphertext that could not be turned back into text:
// malformed base64 or block layout, a pad length beyond the buffer, or
// plaintext that is not UTF-8.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return "envelope: decryption failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "envelope: decryption failed: " + e.Reason
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// KeyError reports an unusable shared secret
type KeyError struct {
	Reason string
	Err    error
}

func (e *KeyError) Error() string {
	if e.Err != nil {
		return "envelope: invalid key: " + e.Reason + ": " + e.Err.Error()
	}
	return "envelope: invalid key: " + e.Reason
}

func (e *KeyError) Unwrap() error {
	return e.Err
}
