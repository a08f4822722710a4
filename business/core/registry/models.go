package registry

import (
	"encoding/json"
	"time"
)

// User represents a registered account and the public proof used to check
// its signatures.
type User struct {
	Address     string    `json:"address"`
	Username    string    `json:"username"`
	PublicProof string    `json:"publicProof"`
	DateCreated time.Time `json:"createdAt"`
}

// NewUser contains the information needed to register a user.
type NewUser struct {
	Address     string `json:"address" validate:"required"`
	Username    string `json:"username" validate:"required"`
	PublicProof string `json:"publicProof" validate:"required"`
}

// Token represents a token that can be minted by its owner.
type Token struct {
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Decimals    int       `json:"decimals"`
	Owner       string    `json:"owner"`
	DateCreated time.Time `json:"createdAt"`
}

// NewToken contains the information needed to create a token.
type NewToken struct {
	Symbol   string `json:"symbol" validate:"required,max=16"`
	Name     string `json:"name"`
	Decimals *int   `json:"decimals" validate:"omitempty,min=0,max=18"`
	Owner    string `json:"owner" validate:"required"`
}

// Kind represents the kind of principal managed by the admin.
type Kind string

// Set of principal kinds.
const (
	KindMiner Kind = "miner"
	KindChild Kind = "child"
)

// Principal represents a miner or child account managed by the admin. Only
// the proof of the secret is stored.
type Principal struct {
	Kind          Kind      `json:"kind"`
	Address       string    `json:"address"`
	Label         string    `json:"label"`
	SecretHash    string    `json:"secretHash"`
	Enabled       bool      `json:"enabled"`
	VerifiedCount int       `json:"verifiedCount"`
	DateCreated   time.Time `json:"createdAt"`
}

// NewPrincipal contains the information needed to add or replace a principal.
type NewPrincipal struct {
	Address string `json:"address" validate:"required"`
	Label   string `json:"label"`
	Secret  string `json:"secret" validate:"required"`
}

// Verification records the outcome of a signature check.
type Verification struct {
	ID          string          `json:"id"`
	Tx          json.RawMessage `json:"tx"`
	Valid       bool            `json:"valid"`
	Reason      string          `json:"reason"`
	Admin       string          `json:"admin"`
	DateCreated time.Time       `json:"createdAt"`
}

// Stats represents the counts shown on the admin dashboard.
type Stats struct {
	Users         int `json:"users"`
	Tokens        int `json:"tokens"`
	Miners        int `json:"miners"`
	Children      int `json:"children"`
	Verifications int `json:"verifications"`
}
