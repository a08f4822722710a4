package database

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math"

	"github.com/bitsim/node/foundation/blockchain/signature"
)

// Set of errors returned when a transaction is not well formed.
var (
	ErrInvalidAmount = errors.New("amount must be a finite number greater than zero")
	ErrInvalidTx     = errors.New("invalid transaction")
)

// =============================================================================

// TxType represents the kind of transaction.
type TxType string

// Set of transaction types.
const (
	TxMint     TxType = "MINT"
	TxTransfer TxType = "TRANSFER"
)

// Tx is the transactional information as it's recorded inside a block.
type Tx struct {
	Type   TxType  `json:"type"`            // MINT or TRANSFER.
	Token  string  `json:"token"`           // Token symbol being minted or moved.
	From   string  `json:"from,omitempty"`  // Sender of a transfer.
	To     string  `json:"to"`              // Account receiving the benefit of the transaction.
	Amount float64 `json:"amount"`          // Amount of the token.
	Sig    string  `json:"sig,omitempty"`   // Proof or ECDSA signature over the signing payload.
	Owner  string  `json:"owner,omitempty"` // Token owner authorizing a mint.
}

// NewMint constructs a new mint transaction.
func NewMint(token string, to string, amount float64, owner string) Tx {
	return Tx{
		Type:   TxMint,
		Token:  token,
		To:     to,
		Amount: amount,
		Owner:  owner,
	}
}

// NewTransfer constructs a new transfer transaction.
func NewTransfer(token string, from string, to string, amount float64) Tx {
	return Tx{
		Type:   TxTransfer,
		Token:  token,
		From:   from,
		To:     to,
		Amount: amount,
	}
}

// Validate checks the transaction is well formed. It does not check
// balances or signatures.
func (tx Tx) Validate() error {
	if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) || tx.Amount <= 0 {
		return ErrInvalidAmount
	}

	if tx.Token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidTx)
	}

	if tx.To == "" {
		return fmt.Errorf("%w: to is required", ErrInvalidTx)
	}

	switch tx.Type {
	case TxMint:
	case TxTransfer:
		if tx.From == "" {
			return fmt.Errorf("%w: from is required for a transfer", ErrInvalidTx)
		}
	default:
		return fmt.Errorf("%w: unsupported type %q", ErrInvalidTx, tx.Type)
	}

	return nil
}

// SigningPayload returns the value a signature is produced over. A transfer
// is signed by the sender and a mint by the token owner.
func (tx Tx) SigningPayload() any {
	if tx.Type == TxTransfer {
		return struct {
			Type   TxType  `json:"type"`
			Token  string  `json:"token"`
			From   string  `json:"from"`
			To     string  `json:"to"`
			Amount float64 `json:"amount"`
		}{tx.Type, tx.Token, tx.From, tx.To, tx.Amount}
	}

	return struct {
		Type   TxType  `json:"type"`
		Token  string  `json:"token"`
		To     string  `json:"to"`
		Amount float64 `json:"amount"`
	}{tx.Type, tx.Token, tx.To, tx.Amount}
}

// SignProof returns a copy of the transaction signed with the public proof.
func (tx Tx) SignProof(proof string) (Tx, error) {
	sig, err := signature.SignProof(tx.SigningPayload(), proof)
	if err != nil {
		return Tx{}, err
	}

	tx.Sig = sig
	return tx, nil
}

// SignECDSA returns a copy of the transaction signed with the private key.
func (tx Tx) SignECDSA(privateKey *ecdsa.PrivateKey) (Tx, error) {
	sig, err := signature.Sign(tx.SigningPayload(), privateKey)
	if err != nil {
		return Tx{}, err
	}

	tx.Sig = sig
	return tx, nil
}

// Signer returns the account expected to have signed the transaction.
func (tx Tx) Signer() string {
	if tx.Type == TxTransfer {
		return tx.From
	}

	return tx.Owner
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	if tx.Type == TxTransfer {
		return fmt.Sprintf("%s:%s:%s->%s:%v", tx.Type, tx.Token, tx.From, tx.To, tx.Amount)
	}

	return fmt.Sprintf("%s:%s:%s:%v", tx.Type, tx.Token, tx.To, tx.Amount)
}

// =============================================================================

// PendingTx represents a transaction waiting in the mempool. The id is
// assigned when the transaction is enqueued and sorts in enqueue order.
type PendingTx struct {
	ID string `json:"id"`
	Tx
	TimeStamp int64 `json:"ts"` // Milliseconds since epoch the transaction was enqueued.
}
