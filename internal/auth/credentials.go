package auth

import (
	"crypto/subtle"
	"errors"
)

// Credentials is a single user/password pair. The password is either plain
// text or an argon2id PHC string.
type Credentials struct {
	user  string
	plain string
	hash  *Argon2idHash
}

// NewCredentials returns nil when user is empty, meaning auth is disabled.
func NewCredentials(user, pass string) (*Credentials, error) {
	if user == "" {
		return nil, nil
	}
	if pass == "" {
		return nil, errors.New("auth password required when auth user is set")
	}
	c := &Credentials{user: user}
	if IsArgon2idHash(pass) {
		h, err := ParseArgon2idHash(pass)
		if err != nil {
			return nil, err
		}
		c.hash = h
		return c, nil
	}
	c.plain = pass
	return c, nil
}

func (c *Credentials) User() string { return c.user }

func (c *Credentials) Check(user, pass string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(c.user)) == 1
	var passOK bool
	if c.hash != nil {
		passOK = c.hash.Verify(pass)
	} else {
		passOK = subtle.ConstantTimeCompare([]byte(pass), []byte(c.plain)) == 1
	}
	return userOK && passOK
}
