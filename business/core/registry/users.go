package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitsim/node/business/sys/validate"
	"github.com/google/uuid"
)

// Register adds a new user with the public proof it will sign with.
func (c *Core) Register(nu NewUser) (User, error) {
	if err := validate.Check(nu); err != nil {
		return User{}, fmt.Errorf("validating data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var exists User
	switch err := c.get(collUsers, nu.Address, &exists); {
	case err == nil:
		return User{}, fmt.Errorf("user %s: %w", nu.Address, ErrExists)
	case !errors.Is(err, ErrNotFound):
		return User{}, err
	}

	usr := User{
		Address:     nu.Address,
		Username:    nu.Username,
		PublicProof: nu.PublicProof,
		DateCreated: time.Now().UTC(),
	}

	if err := c.put(collUsers, usr.Address, usr); err != nil {
		return User{}, fmt.Errorf("storing user: %w", err)
	}

	return usr, nil
}

// User returns the registered user for the address.
func (c *Core) User(address string) (User, error) {
	var usr User
	if err := c.get(collUsers, address, &usr); err != nil {
		return User{}, fmt.Errorf("user %s: %w", address, err)
	}

	return usr, nil
}

// Users returns every registered user ordered by username.
func (c *Core) Users() ([]User, error) {
	usrs, err := list[User](c.storage, collUsers)
	if err != nil {
		return nil, err
	}

	sort.Slice(usrs, func(i, j int) bool {
		return usrs[i].Username < usrs[j].Username
	})

	return usrs, nil
}

// Challenge issues a new nonce the user must sign to prove it holds the
// secret behind its public proof. A new challenge replaces the previous one.
func (c *Core) Challenge(address string) (string, error) {
	if _, err := c.User(address); err != nil {
		return "", err
	}

	nonce := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.challenges[address] = nonce

	return nonce, nil
}

// VerifyChallenge checks the signature over the outstanding challenge. The
// challenge is consumed on success.
func (c *Core) VerifyChallenge(address string, sig string) (User, error) {
	usr, err := c.User(address)
	if err != nil {
		return User{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, exists := c.challenges[address]
	if !exists {
		return User{}, ErrNoChallenge
	}

	if ok, _ := signedBy(nonce, sig, address, usr.PublicProof); !ok {
		return User{}, ErrBadSignature
	}

	delete(c.challenges, address)

	return usr, nil
}
