package errors

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

func BuildErrMsg(errorType string, err error) error {
	return fmt.Errorf("%s : %w", errorType, err)
}

func BuildAndLogErrorMsg(errorType string, err error) error {
	er := BuildErrMsg(errorType, err)
	log.Error(er)
	return er
}

func BuildAndLogErrorMsgWithData(errorType string, err error, args ...interface{}) error {
	log.Error(fmt.Sprintf("Data: %v", args...))
	return BuildAndLogErrorMsg(errorType, err)
}

const (
	MarshallError     = "Error marshalling bytes into structure"
	UnmarshallError   = "Error unmarshalling structure into byte"
	DecodeBodyError   = "Error decoding http request body into structure"
	Base64DecodeError = "Error decoding base64 encoded string"
	HttpRequestError  = "Error executing http request"

	TxBuildError         = "Error building transaction"
	CommitTxError        = "Error commiting Tx to Blockchain"
	ConfirmTxError       = "Error waiting for Tx confirmation"
	ClientError          = "Error creating client"
	BalanceError         = "Error getting account balance"
	UnitConversionError  = "Error converting value"
	SignatureError       = "Error with signature"
	AddressError         = "Error parsing address"
	TxDecodingError      = "Error decoding tx"
	TxSerializeError     = "Error serializing tx"
	AccountDecodingError = "Error decoding on-chain account"
	AccountFetchError    = "Error fetching on-chain account"
	SimulationError      = "Error simulating transaction"
	ClientOrgIdError     = "Error invalid organization id"
	EmptyInputsError     = "Error empty inputs"
	SponsorKeyError      = "Error loading sponsor keypair"

	DBConnectionError     = "Error connecting to DB"
	DBInitializationError = "Error initializing DB"
	DBConfigurationError  = "Error configuring DB"
	JournalWriteError     = "Error writing settlement journal"

	StoreWriteError = "Error writing ephemeral record"
	StoreReadError  = "Error reading ephemeral record"
)

func New(message string) error {
	return errors.New(message)
}

// Is and As mirror the standard library helpers.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
