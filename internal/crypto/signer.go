package crypto

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/atlaslabs-io/hedgewatch/internal/domain"
)

// Signer signs exchange actions with a secp256k1 key. The venue verifies
// keccak256(actionJSON || nonce_be64) against the account's registered
// address and rejects replays via the monotonic nonce.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// ActionSignature is the r/s/v split the exchange gateway expects.
type ActionSignature struct {
	R string
	S string
	V byte
}

// NewSigner creates a Signer from a hex-encoded secp256k1 private key.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(privateKeyHex, "0x")
	pk, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}

	return &Signer{
		privateKey: pk,
		address:    ethcrypto.PubkeyToAddress(pk.PublicKey),
	}, nil
}

// Address returns the address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignAction signs the serialized action bytes together with nonce.
func (s *Signer) SignAction(actionJSON []byte, nonce int64) (ActionSignature, error) {
	nonceBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(nonceBytes, uint64(nonce))

	digest := ethcrypto.Keccak256(actionJSON, nonceBytes)

	sig, err := ethcrypto.Sign(digest, s.privateKey)
	if err != nil {
		return ActionSignature{}, fmt.Errorf("crypto: %w: %v", domain.ErrSigningFailed, err)
	}

	// go-ethereum yields v in {0,1}; the gateway expects {27,28}.
	v := sig[64]
	if v < 27 {
		v += 27
	}

	return ActionSignature{
		R: hexutil.Encode(sig[:32]),
		S: hexutil.Encode(sig[32:64]),
		V: v,
	}, nil
}
