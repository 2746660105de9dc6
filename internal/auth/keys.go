package auth

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/jmartynas/social-login/internal/errs"
)

// Keys are derived from the single configured secret so that the cookie
// store and the token issuer never share key material.
type Keys struct {
	CookieHash  []byte
	CookieBlock []byte
	Token       []byte
}

func DeriveKeys(secret []byte) (Keys, error) {
	if len(secret) == 0 {
		return Keys{}, errs.ErrSecretRequired
	}
	var k Keys
	for _, d := range []struct {
		info string
		dst  *[]byte
		size int
	}{
		{"social-login cookie hash", &k.CookieHash, 64},
		{"social-login cookie block", &k.CookieBlock, 32},
		{"social-login token", &k.Token, 32},
	} {
		*d.dst = make([]byte, d.size)
		if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(d.info)), *d.dst); err != nil {
			return Keys{}, fmt.Errorf("derive %s key: %w", d.info, err)
		}
	}
	return k, nil
}
