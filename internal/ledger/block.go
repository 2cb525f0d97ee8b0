// Package ledger is the append-only chain of identity blocks. Each
// registration becomes one block, mined to the configured difficulty and
// admitted only when a majority of sampled validators re-verify the work.
package ledger

import (
	"encoding/json"
	"time"
)

// Genesis block constants. The genesis keypair is public knowledge.
const (
	GenesisMessage    = "Genesis Block"
	GenesisPrivateKey = "0x17856d7938bf94bf3186d751ebe5a448ca86d5d7e055e6cb54fd62f662a883ca"
	GenesisPublicKey  = "0x60E9a1b6B9b94D2f32a92bad046C6866830eF464"
)

// Block is one ledger entry. Index 1 is the genesis block; every later block
// carries one registration and the keypair issued to its owner.
type Block struct {
	Index        uint64          `json:"index"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data"`
	PreviousHash string          `json:"previousHash"`
	Hash         string          `json:"hash"`
	Nonce        uint64          `json:"nonce"`
	PublicKey    string          `json:"publicKey"`
	PrivateKey   string          `json:"privateKey,omitempty"`
}

// GenesisPayload is the data of block 1.
type GenesisPayload struct {
	Message string `json:"message"`
}

// Registration is the data of an identity block.
type Registration struct {
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
}

// IsGenesis reports whether b is the first block.
func (b Block) IsGenesis() bool {
	return b.Index == 1
}

// Public returns b without its private key, for read endpoints.
func (b Block) Public() Block {
	b.PrivateKey = ""
	b.Data = append(json.RawMessage(nil), b.Data...)
	return b
}

func (b Block) clone() Block {
	b.Data = append(json.RawMessage(nil), b.Data...)
	return b
}
