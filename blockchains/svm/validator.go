package svm

import (
	"fmt"

	"finco/settlement/errors"

	"github.com/gagliardetto/solana-go"
)

// Expectation carries what the server recorded when it built the
// transaction. An empty Fingerprint skips the tamper check.
type Expectation struct {
	Fingerprint string
}

// Validator checks transactions returned by clients before the sponsor
// signs them.
type Validator struct {
	sponsor solana.PublicKey
}

func NewValidator(sponsor solana.PublicKey) *Validator {
	return &Validator{sponsor: sponsor}
}

// Validate decodes encoded and applies, in order: format, fee payer,
// sponsor slot empty, member signature present and valid, and finally the
// fingerprint match. The first failing check is returned.
func (v *Validator) Validate(encoded string, expected Expectation) (*solana.Transaction, error) {
	tx, err := DecodeTransaction(encoded)
	if err != nil {
		return nil, errors.InvalidTransactionFormat(err)
	}
	if len(tx.Message.Instructions) == 0 {
		return nil, errors.InvalidTransactionFormat(fmt.Errorf("no instructions"))
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required == 0 || len(tx.Message.AccountKeys) < required || len(tx.Signatures) != required {
		return nil, errors.InvalidTransactionFormat(
			fmt.Errorf("%d signatures for %d required signers", len(tx.Signatures), required))
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, errors.InvalidTransactionFormat(err)
	}

	if !tx.Message.AccountKeys[0].Equals(v.sponsor) {
		return nil, errors.InvalidFeePayer()
	}

	if tx.Signatures[0] != (solana.Signature{}) {
		return nil, errors.AlreadySigned()
	}

	if !hasMemberSignature(tx, message, v.sponsor) {
		return nil, errors.MissingUserSignature()
	}

	if expected.Fingerprint != "" {
		fingerprint, err := MessageFingerprint(tx)
		if err != nil {
			return nil, errors.InvalidTransactionFormat(err)
		}
		if fingerprint != expected.Fingerprint {
			return nil, errors.MessageTampered()
		}
	}
	return tx, nil
}

func hasMemberSignature(tx *solana.Transaction, message []byte, sponsor solana.PublicKey) bool {
	for i, sig := range tx.Signatures {
		key := tx.Message.AccountKeys[i]
		if key.Equals(sponsor) || sig == (solana.Signature{}) {
			continue
		}
		if sig.Verify(key, message) {
			return true
		}
	}
	return false
}
