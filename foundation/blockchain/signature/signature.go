// Package signature provides helper functions for signing data on behalf
// of a wallet. Nodes treat signatures as opaque strings.
package signature

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sign uses the specified private key to sign the value and returns the 65
// byte [R|S|V] signature hex encoded.
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

	return hexutil.Encode(sig), nil
}

// FromAddress extracts the address of the key that signed the value.
func FromAddress(value any, sigHex string) (string, error) {

	// NOTE: If the same exact data for the given signature is not provided
	// we will get the wrong address. The public key is being extracted from
	// the data and signature.

	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return "", err
	}
	if len(sig) != crypto.SignatureLength {
		return "", errors.New("invalid signature length")
	}

	// Prepare the data for public key extraction.
	data, err := stamp(value)
	if err != nil {
		return "", err
	}

	// Capture the public key associated with this data and signature.
	publicKey, err := crypto.SigToPub(data, sig)
	if err != nil {
		return "", err
	}

	// Extract the address from the public key.
	return crypto.PubkeyToAddress(*publicKey).Hex(), nil
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this data with
// the ChainLite stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the data.
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the data into a 32 byte array. This will provide
	// a data length consistency with all data.
	txHash := crypto.Keccak256(v)

	// Convert the stamp into a slice of bytes. This stamp is
	// used so signatures we produce when signing data
	// are always unique to ChainLite.
	stamp := []byte("\x19ChainLite Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the data.
	data := crypto.Keccak256(stamp, txHash)

	return data, nil
}
