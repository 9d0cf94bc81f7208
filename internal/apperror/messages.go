package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:       "Invalid input provided",
	CodeInvalidFormat:      "Invalid data format",
	CodeConfigurationError: "Configuration error",
	CodeServiceTimeout:     "Service request timeout",
	CodeUnknownError:       "An unknown error occurred",

	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeInvalidSignerKey:         "Invalid signer private key",

	CodeInvalidCall: "Invalid call",

	CodeGasEstimationFailed:   "Gas estimation failed",
	CodeFeeDataUnavailable:    "Fee data unavailable",
	CodeAggregateEncodeFailed: "Failed to encode aggregate call",
	CodeNonceUnavailable:      "Failed to fetch account nonce",
	CodeTransactionSignFailed: "Failed to sign transaction",
	CodeTransactionSendFailed: "Failed to send transaction",
	CodeConfirmationFailed:    "Failed waiting for transaction confirmation",
	CodeTransactionReverted:   "Transaction reverted",

	CodeExchangeConnectionFailed: "Failed to connect to message exchange",
	CodeExchangePublishFailed:    "Failed to publish to message exchange",
	CodeLogSinkFlushFailed:       "Failed to flush log sink",

	CodeCircuitOpen: "Circuit breaker is open",
}
