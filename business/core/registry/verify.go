package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bitsim/node/foundation/blockchain/database"
	"github.com/bitsim/node/foundation/blockchain/signature"
)

// Limits applied when listing verifications.
const (
	defaultVerifications = 50
	maxVerifications     = 200
)

// VerifyTx checks the signature and content of a transaction on behalf of
// the admin and records the outcome.
func (c *Core) VerifyTx(tx database.Tx, admin string) (Verification, error) {
	if err := tx.Validate(); err != nil {
		return Verification{}, err
	}

	valid, reason, err := c.checkTx(tx)
	if err != nil {
		return Verification{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.record(tx, valid, reason, admin)
}

// AdmitTx decides if a transaction may enter the mempool. A transfer must be
// signed by its sender. A mint must name a known token and be signed by the
// token's owner.
func (c *Core) AdmitTx(tx database.Tx) error {
	if tx.Type == database.TxMint && (tx.Owner == "" || tx.Sig == "") {
		if _, err := c.Token(tx.Token); err != nil {
			return fmt.Errorf("%w: unknown token %s", ErrNotAdmitted, tx.Token)
		}
		return fmt.Errorf("%w: mint requires the token owner's signature", ErrNotAdmitted)
	}

	valid, reason, err := c.checkTx(tx)
	if err != nil {
		return err
	}

	if !valid {
		return fmt.Errorf("%w: %s", ErrNotAdmitted, strings.ToLower(reason))
	}

	return nil
}

// Verifications returns the most recent verification records, newest first.
func (c *Core) Verifications(limit int) ([]Verification, error) {
	switch {
	case limit <= 0:
		limit = defaultVerifications
	case limit > maxVerifications:
		limit = maxVerifications
	}

	vers, err := list[Verification](c.storage, collVerifications)
	if err != nil {
		return nil, err
	}

	out := make([]Verification, 0, limit)
	for i := len(vers) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, vers[i])
	}

	return out, nil
}

// Stats returns the number of documents in each registry collection.
func (c *Core) Stats() (Stats, error) {
	var st Stats

	counts := []struct {
		collection string
		count      *int
	}{
		{collUsers, &st.Users},
		{collTokens, &st.Tokens},
		{collMiners, &st.Miners},
		{collChildren, &st.Children},
		{collVerifications, &st.Verifications},
	}

	for _, cnt := range counts {
		docs, err := c.storage.List(cnt.collection)
		if err != nil {
			return Stats{}, err
		}
		*cnt.count = len(docs)
	}

	return st, nil
}

// =============================================================================

// checkTx reports if the transaction carries a valid signature along with a
// human readable reason. A mint without a signature only needs a known token.
func (c *Core) checkTx(tx database.Tx) (bool, string, error) {
	switch tx.Type {
	case database.TxTransfer:
		if tx.From == "" || tx.Sig == "" {
			return false, "Missing from/sig", nil
		}

		proof, err := c.proofOf(tx.From, tx.Sig)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, "Unknown sender", nil
			}
			return false, "", err
		}

		if ok, _ := signedBy(tx.SigningPayload(), tx.Sig, tx.From, proof); !ok {
			return false, "Signature mismatch", nil
		}
		return true, "Signature matches", nil

	case database.TxMint:
		tkn, err := c.Token(tx.Token)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, "Unknown token", nil
			}
			return false, "", err
		}

		if tx.Owner == "" || tx.Sig == "" {
			return true, "Token exists (no sig provided)", nil
		}

		proof, err := c.proofOf(tx.Owner, tx.Sig)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, "Unknown owner", nil
			}
			return false, "", err
		}

		ok, _ := signedBy(tx.SigningPayload(), tx.Sig, tx.Owner, proof)
		if !ok || tkn.Owner != tx.Owner {
			return false, "Owner/signature mismatch", nil
		}
		return true, "Owner signature matches", nil
	}

	return false, "Unsupported type", nil
}

// proofOf returns the public proof for the address. ECDSA signatures carry
// their own public key so no registered user is needed.
func (c *Core) proofOf(address string, sig string) (string, error) {
	if signature.IsECDSASignature(sig) {
		return "", nil
	}

	usr, err := c.User(address)
	if err != nil {
		return "", err
	}

	return usr.PublicProof, nil
}

// signedBy checks the signature over the payload belongs to the address,
// either as an ECDSA signature or as a proof signature.
func signedBy(payload any, sig string, address string, proof string) (bool, error) {
	if signature.IsECDSASignature(sig) {
		from, err := signature.FromAddress(payload, sig)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(from, address), nil
	}

	if proof == "" {
		return false, nil
	}

	return signature.VerifyProof(payload, proof, sig), nil
}

// record stores a verification. The caller must hold the mutex.
func (c *Core) record(payload any, valid bool, reason string, admin string) (Verification, error) {
	data, err := signature.Marshal(payload)
	if err != nil {
		return Verification{}, err
	}

	ver := Verification{
		ID:          c.nextSeq(),
		Tx:          data,
		Valid:       valid,
		Reason:      reason,
		Admin:       admin,
		DateCreated: time.Now().UTC(),
	}

	if err := c.put(collVerifications, ver.ID, ver); err != nil {
		return Verification{}, fmt.Errorf("storing verification: %w", err)
	}

	return ver, nil
}
