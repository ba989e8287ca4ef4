// Package fieldcrypt implements the key handling behind veloxdb's encrypted
// column codecs.
//
// A Keyset turns a list of application secrets (ordered newest first) into
// Fernet encryption keys. By default each secret is expanded with HKDF-SHA256
// into the 32 bytes a Fernet key requires, so any string a deployment already
// treats as secret is a valid input; WithRawKeys skips derivation for secrets
// that are already encoded Fernet keys.
//
// Encryption always uses the newest key. Decryption tries every key in
// order, which makes secret rotation a two-step operation: prepend the new
// secret, redeploy, and old rows keep decrypting with the previous keys.
//
//	ks, err := fieldcrypt.New([]string{newSecret, oldSecret})
//	if err != nil {
//	    return err
//	}
//	tok, err := ks.Encrypt([]byte("hunter2"))
//	msg, err := ks.Decrypt(tok)
//
// For services that rotate secrets without redeploying, Watch loads the
// secrets from a file and swaps the keyset when the file changes:
//
//	src, err := fieldcrypt.Watch("/etc/veloxdb/secrets")
//	codec := field.NewCodec(src)
package fieldcrypt
