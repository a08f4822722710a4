// Package signature provides the checksum, hashing and signing support for
// the blockchain. The checksum is not a cryptographic hash. It exists to stay
// compatible with blocks and proofs produced by the simulator front end.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents the checksum of an empty string. It is also used as
// the hash of the virtual genesis block.
const ZeroHash string = "00000000"

// bitsimID is an arbitrary number added to the recovery id of ECDSA
// signatures. This will make it clear the signature comes from bitsim.
const bitsimID = 29

// =============================================================================

// Variant represents the multiplier used by the rolling checksum. Nodes use
// Server. Browser is what web wallets compute locally.
type Variant uint32

// Set of known checksum variants.
const (
	Server  Variant = 131
	Browser Variant = 31
)

// ParseVariant converts a configuration string into a checksum variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "", "server":
		return Server, nil
	case "browser":
		return Browser, nil
	}

	return 0, fmt.Errorf("unknown checksum variant %q", name)
}

// String implements the fmt.Stringer interface.
func (v Variant) String() string {
	switch v {
	case Server:
		return "server"
	case Browser:
		return "browser"
	}

	return fmt.Sprintf("variant(%d)", uint32(v))
}

// New constructs an incremental digest for this variant.
func (v Variant) New() *Digest {
	return &Digest{mul: uint32(v)}
}

// Checksum returns the 8 hex character checksum of the text.
func (v Variant) Checksum(text string) string {
	d := v.New()
	d.Write(text)
	return d.Sum()
}

// Checksum returns the checksum of the text using the server variant.
func Checksum(text string) string {
	return Server.Checksum(text)
}

// =============================================================================

// Digest maintains the running state of a checksum so a common prefix
// only has to be processed once.
type Digest struct {
	mul uint32
	sum uint32
}

// Write feeds the UTF-16 code units of the text into the digest.
func (d *Digest) Write(text string) {
	for _, r := range text {
		if r >= 0x10000 {
			r1, r2 := utf16.EncodeRune(r)
			d.sum = d.sum*d.mul + uint32(r1)
			d.sum = d.sum*d.mul + uint32(r2)
			continue
		}
		d.sum = d.sum*d.mul + uint32(r)
	}
}

// Sum returns the current checksum as zero padded lowercase hex.
func (d *Digest) Sum() string {
	return fmt.Sprintf("%08x", d.sum)
}

// Clone returns a copy of the digest in its current state.
func (d *Digest) Clone() *Digest {
	c := *d
	return &c
}

// =============================================================================

// Marshal produces the canonical JSON for the value. HTML characters and the
// U+2028 and U+2029 line terminators are not escaped and there is no trailing
// newline so web clients hashing the same value get the same bytes.
func Marshal(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(value); err != nil {
		return nil, err
	}

	return unescapeLineTerminators(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// unescapeLineTerminators writes the \u2028 and \u2029 escapes the encoder
// always produces back as raw runes. Escapes are walked in pairs so an
// escaped backslash followed by u2028 is left alone.
func unescapeLineTerminators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != '\\' || i+1 == len(data) {
			out = append(out, data[i])
			continue
		}

		if esc := data[i+1:]; len(esc) >= 5 && esc[0] == 'u' {
			switch string(esc[1:5]) {
			case "2028":
				out = append(out, "\u2028"...)
				i += 5
				continue
			case "2029":
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}

		out = append(out, data[i], data[i+1])
		i++
	}

	return out
}

// Hash returns the server checksum of the canonical JSON for the value.
func Hash(value any) string {
	data, err := Marshal(value)
	if err != nil {
		return ZeroHash
	}

	return Checksum(string(data))
}

// =============================================================================

// Proof derives the public proof for a secret. The proof is what gets shared
// with the node and is used to check proof signatures.
func Proof(secret string) string {
	return Checksum(secret)
}

// SignProof produces a proof signature for the payload. The payload is
// signed using its canonical JSON, so a string payload is signed quoted.
func SignProof(payload any, proof string) (string, error) {
	data, err := Marshal(payload)
	if err != nil {
		return "", err
	}

	return Checksum(string(data) + proof), nil
}

// VerifyProof checks the signature was produced for the payload with the
// specified public proof.
func VerifyProof(payload any, proof string, sig string) bool {
	exp, err := SignProof(payload, proof)
	if err != nil {
		return false
	}

	return exp == sig
}

// =============================================================================

// Sign uses the specified private key to sign the value. The signature is
// returned hex encoded in the [R|S|V] format.
func Sign(value any, privateKey *ecdsa.PrivateKey) (string, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return "", err
	}

	// Check the public key extracted from the data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	rs := sig[:crypto.RecoveryIDOffset]
	if !crypto.VerifySignature(crypto.FromECDSAPub(publicKey), data, rs) {
		return "", errors.New("invalid signature")
	}

	sig[crypto.RecoveryIDOffset] += bitsimID

	return hexutil.Encode(sig), nil
}

// IsECDSASignature reports whether the signature string has the shape of an
// ECDSA signature as produced by Sign.
func IsECDSASignature(sig string) bool {
	return strings.HasPrefix(sig, "0x") && len(sig) == 2+2*crypto.SignatureLength
}

// FromAddress extracts the address for the account that signed the value.
func FromAddress(value any, sig string) (string, error) {
	raw, err := toSignatureBytes(sig)
	if err != nil {
		return "", err
	}

	// Prepare the data for public key extraction.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(data, raw)
	if err != nil {
		return "", err
	}

	return crypto.PubkeyToAddress(*publicKey).String(), nil
}

// PublicKeyToAddress converts the public key to an account address.
func PublicKeyToAddress(pk ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(pk).String()
}

// stamp returns a hash of 32 bytes that represents this data with
// the bitsim stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {
	v, err := Marshal(value)
	if err != nil {
		return nil, err
	}

	txHash := crypto.Keccak256(v)
	stamp := []byte("\x19Bitsim Signed Message:\n32")

	return crypto.Keccak256(stamp, txHash), nil
}

// toSignatureBytes decodes the hex signature and validates its values,
// removing the bitsim id from the recovery byte.
func toSignatureBytes(sig string) ([]byte, error) {
	if !IsECDSASignature(sig) {
		return nil, errors.New("invalid signature format")
	}

	raw, err := hexutil.Decode(sig)
	if err != nil {
		return nil, err
	}

	v := raw[crypto.RecoveryIDOffset] - bitsimID
	if v != 0 && v != 1 {
		return nil, errors.New("invalid recovery id")
	}
	raw[crypto.RecoveryIDOffset] = v

	return raw, nil
}
