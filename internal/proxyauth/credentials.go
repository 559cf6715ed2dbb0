package proxyauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ErrMalformedToken is returned when a received authorization token cannot
// be decoded under the given passphrase (or lack of one).
var ErrMalformedToken = errors.New("proxyauth: malformed credential token")

const (
	pbkdf2Iterations = 100_000
	keyLen           = 32
	encryptedPrefix  = "enc:"
)

// Encode renders user/pass as the authorization header value a remote
// controller sends on the websocket upgrade request. With an empty
// passphrase it is plain base64("user:pass"); otherwise it is sealed with a
// key derived from passphrase via PBKDF2-SHA256.
func Encode(user, pass, passphrase string) (string, error) {
	plain := user + ":" + pass
	if passphrase == "" {
		return base64.StdEncoding.EncodeToString([]byte(plain)), nil
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("proxyauth: generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("proxyauth: build cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("proxyauth: build gcm: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("proxyauth: generate nonce: %w", err)
	}

	sealed := gcm.Seal(nil, nonce, []byte(plain), nil)
	payload := append(append(salt, nonce...), sealed...)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(payload), nil
}

// Decode reverses Encode, returning the embedded username and password.
func Decode(token, passphrase string) (user, pass string, err error) {
	if strings.HasPrefix(token, encryptedPrefix) {
		if passphrase == "" {
			return "", "", ErrMalformedToken
		}
		return decodeEncrypted(strings.TrimPrefix(token, encryptedPrefix), passphrase)
	}
	if passphrase != "" {
		return "", "", ErrMalformedToken
	}

	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", "", ErrMalformedToken
	}
	user, pass, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", ErrMalformedToken
	}
	return user, pass, nil
}

func decodeEncrypted(b64 string, passphrase string) (user, pass string, err error) {
	payload, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", "", ErrMalformedToken
	}

	const saltLen = 16
	if len(payload) < saltLen {
		return "", "", ErrMalformedToken
	}
	salt := payload[:saltLen]
	rest := payload[saltLen:]

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", "", ErrMalformedToken
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", ErrMalformedToken
	}
	if len(rest) < gcm.NonceSize() {
		return "", "", ErrMalformedToken
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", "", ErrMalformedToken
	}
	user, pass, ok := strings.Cut(string(plain), ":")
	if !ok {
		return "", "", ErrMalformedToken
	}
	return user, pass, nil
}
