package registry

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitsim/node/business/sys/validate"
)

// defaultDecimals is used when a new token doesn't specify its decimals.
const defaultDecimals = 6

// CreateToken adds a new token owned by the specified address.
func (c *Core) CreateToken(nt NewToken) (Token, error) {
	if err := validate.Check(nt); err != nil {
		return Token{}, fmt.Errorf("validating data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var exists Token
	switch err := c.get(collTokens, nt.Symbol, &exists); {
	case err == nil:
		return Token{}, fmt.Errorf("token %s: %w", nt.Symbol, ErrExists)
	case !errors.Is(err, ErrNotFound):
		return Token{}, err
	}

	tkn := Token{
		Symbol:      nt.Symbol,
		Name:        nt.Name,
		Decimals:    defaultDecimals,
		Owner:       nt.Owner,
		DateCreated: time.Now().UTC(),
	}
	if nt.Decimals != nil {
		tkn.Decimals = *nt.Decimals
	}

	if err := c.put(collTokens, tkn.Symbol, tkn); err != nil {
		return Token{}, fmt.Errorf("storing token: %w", err)
	}

	return tkn, nil
}

// Token returns the token for the symbol.
func (c *Core) Token(symbol string) (Token, error) {
	var tkn Token
	if err := c.get(collTokens, symbol, &tkn); err != nil {
		return Token{}, fmt.Errorf("token %s: %w", symbol, err)
	}

	return tkn, nil
}

// Tokens returns every token ordered by symbol.
func (c *Core) Tokens() ([]Token, error) {
	tkns, err := list[Token](c.storage, collTokens)
	if err != nil {
		return nil, err
	}

	sort.Slice(tkns, func(i, j int) bool {
		return tkns[i].Symbol < tkns[j].Symbol
	})

	return tkns, nil
}
