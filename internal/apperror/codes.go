package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField Code = "REQUIRED_FIELD"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeInvalidState  Code = "INVALID_STATE"
	CodeNotFound      Code = "NOT_FOUND"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Wallet and ledger error codes
const (
	// Wallet provider session
	CodeProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	CodeUserRejected        Code = "USER_REJECTED"
	CodeNotConnected        Code = "NOT_CONNECTED"
	CodeWalletRPCError      Code = "WALLET_RPC_ERROR"
	CodeWalletUnreachable   Code = "WALLET_UNREACHABLE"
	CodeWalletDisconnected  Code = "WALLET_DISCONNECTED"

	// Addresses
	CodeInvalidAddress Code = "INVALID_ADDRESS"

	// Contract calls and transactions
	CodeInvalidBindingMode  Code = "INVALID_BINDING_MODE"
	CodeUnknownMethod       Code = "UNKNOWN_METHOD"
	CodeRemoteFailed        Code = "REMOTE_FAILED"
	CodeConfirmationTimeout Code = "CONFIRMATION_TIMEOUT"
	CodeSubmitUnresolved    Code = "SUBMIT_UNRESOLVED"

	// Node connectivity and events
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeHistoryFetchFailed       Code = "HISTORY_FETCH_FAILED"
	CodeUnknownTopic             Code = "UNKNOWN_TOPIC"
	CodeFilterDetached           Code = "FILTER_DETACHED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
	CodeWebSocketSendError       Code = "WEBSOCKET_SEND_ERROR"

	// Persistence
	CodeStorageError Code = "STORAGE_ERROR"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
