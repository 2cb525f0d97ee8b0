package chainnode

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var weiPerEther = new(big.Float).SetInt(big.NewInt(1_000_000_000_000_000_000))

// GenerateWallet creates a random secp256k1 keypair. The private key is
// 0x-prefixed hex, 66 characters in total.
func GenerateWallet() (Wallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return Wallet{}, fmt.Errorf("generate key: %w", err)
	}
	return Wallet{
		PrivateKey: hexutil.Encode(crypto.FromECDSA(key)),
		Address:    Address(crypto.PubkeyToAddress(key.PublicKey).Hex()),
	}, nil
}

// SignMessage produces an EIP-191 personal-message signature of message,
// 0x-prefixed with the recovery byte offset by 27. Signing is deterministic
// (RFC 6979), so equal keys and messages always give equal signatures.
func SignMessage(privateKey, message string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// RecoverAddress returns the address whose key produced signature over message.
func RecoverAddress(message, signature string) (Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", fmt.Errorf("recover public key: %w", err)
	}
	return Address(crypto.PubkeyToAddress(*pub).Hex()), nil
}

// AddressFromKey derives the checksummed address of privateKey.
func AddressFromKey(privateKey string) (Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	return Address(crypto.PubkeyToAddress(key.PublicKey).Hex()), nil
}

// ParseAddress validates and checksums a hex address.
func ParseAddress(s string) (Address, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("invalid address %q", s)
	}
	return Address(common.HexToAddress(s).Hex()), nil
}

// FormatEther renders a wei amount as "<ether> ETH".
func FormatEther(wei *big.Int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther)
	return eth.Text('f', -1) + " ETH"
}
