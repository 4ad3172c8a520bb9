package enum

const (
	CodeOk = iota
	CodeErrMissingArgument
	CodeErrNotFound
	CodeErrBadArgument
	CodeErrDB
	CodeErrBlockchainNetworkError
	CodeErrConflict
	CodeErrQuorumNotReached
)

var CodeMessage = map[int]string{
	CodeOk:                        "success",
	CodeErrMissingArgument:        "missing argument",
	CodeErrNotFound:               "object not found",
	CodeErrBadArgument:            "bad argument",
	CodeErrDB:                     "database error",
	CodeErrBlockchainNetworkError: "BlockchainNetworkError",
	CodeErrConflict:               "already exists",
	CodeErrQuorumNotReached:       "quorum not reached",
}
