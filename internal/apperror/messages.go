package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField: "Required field is missing",
	CodeInvalidInput:  "Invalid input provided",
	CodeInvalidState:  "Invalid state for this operation",
	CodeNotFound:      "Resource not found",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// System errors
	CodeInternalError: "Internal error",
	CodeUnknownError:  "An unknown error occurred",

	// Wallet provider session
	CodeProviderUnavailable: "No wallet provider is available",
	CodeUserRejected:        "The user rejected the wallet request",
	CodeNotConnected:        "Wallet is not connected",
	CodeWalletRPCError:      "Wallet provider request failed",
	CodeWalletUnreachable:   "Wallet provider could not be reached",
	CodeWalletDisconnected:  "Wallet connection dropped before it answered",

	// Addresses
	CodeInvalidAddress: "Address could not be canonicalized",

	// Contract calls and transactions
	CodeInvalidBindingMode:  "Operation not allowed for this binding mode",
	CodeUnknownMethod:       "Method not found in contract interface",
	CodeRemoteFailed:        "The network rejected or reverted the call",
	CodeConfirmationTimeout: "Transaction confirmation is still pending",
	CodeSubmitUnresolved:    "The wallet may have broadcast the transaction; check before resending",

	// Node connectivity and events
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeHistoryFetchFailed:       "Failed to fetch historical events",
	CodeUnknownTopic:             "Event topic not found in any contract interface",
	CodeFilterDetached:           "Event filter is detached",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Persistence
	CodeStorageError: "Storage operation failed",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
