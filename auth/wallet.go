package auth

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"wallet-chat/domain"
	"wallet-chat/errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

const signatureLength = 65

// SignInMessage is the text a wallet signs to prove ownership during sign-in.
func SignInMessage(nonce string) string {
	return "Sign in to wallet-chat\nNonce: " + nonce
}

// personalHash is the EIP-191 personal_sign digest of message.
func personalHash(message string) []byte {
	h := sha3.NewLegacyKeccak256()
	_, _ = fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(message), message)
	return h.Sum(nil)
}

// Address derives the checksum-free, lowercase 0x address of a public key.
func Address(pub *secp256k1.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub.SerializeUncompressed()[1:])
	return "0x" + hex.EncodeToString(h.Sum(nil)[12:])
}

// VerifySignature checks that signature, a hex encoded R || S || V personal_sign
// signature, was produced over message by the key owning wallet.
func VerifySignature(wallet, message, signature string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(raw) != signatureLength {
		return errors.ErrInvalidSignature
	}

	v := raw[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return errors.ErrInvalidSignature
	}

	// ecdsa.RecoverCompact expects the recovery byte first.
	compact := make([]byte, 0, signatureLength)
	compact = append(compact, 27+v)
	compact = append(compact, raw[:64]...)

	pub, _, err := ecdsa.RecoverCompact(compact, personalHash(message))
	if err != nil {
		return errors.ErrInvalidSignature
	}
	if !domain.SameWallet(Address(pub), wallet) {
		return errors.ErrInvalidSignature
	}
	return nil
}

// SignPersonalMessage produces the R || S || V hex signature a wallet would
// return for message. Clients and tests use it to drive the sign-in flow.
func SignPersonalMessage(key *secp256k1.PrivateKey, message string) string {
	compact := ecdsa.SignCompact(key, personalHash(message), false)
	var buf bytes.Buffer
	buf.Write(compact[1:])
	buf.WriteByte(compact[0])
	return "0x" + hex.EncodeToString(buf.Bytes())
}
