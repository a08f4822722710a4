package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bitsim/node/business/sys/validate"
	"github.com/bitsim/node/foundation/blockchain/signature"
)

// collection returns where principals of this kind are stored.
func (k Kind) collection() (string, error) {
	switch k {
	case KindMiner:
		return collMiners, nil
	case KindChild:
		return collChildren, nil
	}

	return "", fmt.Errorf("unknown principal kind %q", k)
}

// UpsertPrincipal adds or replaces the principal. The secret itself is never
// stored, only its proof. Replacing a principal enables it again.
func (c *Core) UpsertPrincipal(kind Kind, np NewPrincipal) (Principal, error) {
	coll, err := kind.collection()
	if err != nil {
		return Principal{}, err
	}

	if err := validate.Check(np); err != nil {
		return Principal{}, fmt.Errorf("validating data: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	prn := Principal{
		Kind:        kind,
		Address:     np.Address,
		DateCreated: time.Now().UTC(),
	}

	switch err := c.get(coll, np.Address, &prn); {
	case err == nil, errors.Is(err, ErrNotFound):
	default:
		return Principal{}, err
	}

	prn.Label = np.Label
	prn.SecretHash = signature.Proof(np.Secret)
	prn.Enabled = true

	if err := c.put(coll, prn.Address, prn); err != nil {
		return Principal{}, fmt.Errorf("storing %s: %w", kind, err)
	}

	return prn, nil
}

// Principal returns the principal of the kind for the address.
func (c *Core) Principal(kind Kind, address string) (Principal, error) {
	coll, err := kind.collection()
	if err != nil {
		return Principal{}, err
	}

	var prn Principal
	if err := c.get(coll, address, &prn); err != nil {
		return Principal{}, fmt.Errorf("%s %s: %w", kind, address, err)
	}

	return prn, nil
}

// Principals returns every principal of the kind, newest first.
func (c *Core) Principals(kind Kind) ([]Principal, error) {
	coll, err := kind.collection()
	if err != nil {
		return nil, err
	}

	prns, err := list[Principal](c.storage, coll)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(prns, func(i, j int) bool {
		return prns[i].DateCreated.After(prns[j].DateCreated)
	})

	return prns, nil
}

// TogglePrincipal enables or disables the principal.
func (c *Core) TogglePrincipal(kind Kind, address string, enabled bool) (Principal, error) {
	coll, err := kind.collection()
	if err != nil {
		return Principal{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var prn Principal
	if err := c.get(coll, address, &prn); err != nil {
		return Principal{}, fmt.Errorf("%s %s: %w", kind, address, err)
	}

	prn.Enabled = enabled

	if err := c.put(coll, prn.Address, prn); err != nil {
		return Principal{}, fmt.Errorf("storing %s: %w", kind, err)
	}

	return prn, nil
}

// SignAs signs the payload on behalf of an enabled principal. The caller must
// know the principal's secret. The payload is normalized first so it signs
// the same however the client formatted it.
func (c *Core) SignAs(kind Kind, address string, secret string, payload json.RawMessage) (string, error) {
	payload, err := normalizePayload(payload)
	if err != nil {
		return "", err
	}

	prn, err := c.Principal(kind, address)
	if err != nil {
		return "", err
	}

	if !prn.Enabled {
		return "", ErrDisabled
	}

	proof := signature.Proof(secret)
	if proof != prn.SecretHash {
		return "", ErrBadSecret
	}

	return signature.SignProof(payload, proof)
}

// VerifyAs checks a signature produced for the principal and records the
// outcome. A valid signature increments the principal's verified count.
func (c *Core) VerifyAs(kind Kind, address string, payload json.RawMessage, sig string) (Verification, error) {
	payload, err := normalizePayload(payload)
	if err != nil {
		return Verification{}, err
	}

	coll, err := kind.collection()
	if err != nil {
		return Verification{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var prn Principal
	if err := c.get(coll, address, &prn); err != nil {
		return Verification{}, fmt.Errorf("%s %s: %w", kind, address, err)
	}

	if !prn.Enabled {
		return Verification{}, ErrDisabled
	}

	valid := signature.VerifyProof(payload, prn.SecretHash, sig)

	reason := "Signature mismatch"
	if valid {
		reason = fmt.Sprintf("%s signature valid", kind)

		prn.VerifiedCount++
		if err := c.put(coll, prn.Address, prn); err != nil {
			return Verification{}, fmt.Errorf("storing %s: %w", kind, err)
		}
	}

	return c.record(payload, valid, reason, fmt.Sprintf("%s:%s", kind, address))
}

// normalizePayload re-encodes the payload in its canonical form.
func normalizePayload(payload json.RawMessage) (json.RawMessage, error) {
	data, err := signature.Normalize(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %s", ErrInvalid, err)
	}

	return json.RawMessage(data), nil
}
