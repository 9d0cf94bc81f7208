package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeInvalidFormat      Code = "INVALID_FORMAT"
	CodeConfigurationError Code = "CONFIGURATION_ERROR"
	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
)

// Batching error codes
const (
	// Chain access
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeInvalidSignerKey         Code = "INVALID_SIGNER_KEY"

	// Queue
	CodeInvalidCall Code = "INVALID_CALL"

	// Submission pipeline
	CodeGasEstimationFailed   Code = "GAS_ESTIMATION_FAILED"
	CodeFeeDataUnavailable    Code = "FEE_DATA_UNAVAILABLE"
	CodeAggregateEncodeFailed Code = "AGGREGATE_ENCODE_FAILED"
	CodeNonceUnavailable      Code = "NONCE_UNAVAILABLE"
	CodeTransactionSignFailed Code = "TRANSACTION_SIGN_FAILED"
	CodeTransactionSendFailed Code = "TRANSACTION_SEND_FAILED"
	CodeConfirmationFailed    Code = "CONFIRMATION_FAILED"
	CodeTransactionReverted   Code = "TRANSACTION_REVERTED"

	// Notification
	CodeExchangeConnectionFailed Code = "EXCHANGE_CONNECTION_FAILED"
	CodeExchangePublishFailed    Code = "EXCHANGE_PUBLISH_FAILED"
	CodeLogSinkFlushFailed       Code = "LOG_SINK_FLUSH_FAILED"

	// Circuit breaker
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)
