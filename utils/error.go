package utils

const (
	RPCERROR = "JSON RPC ERROR WITH MESSAGE"
)

const (
	BUNDLE_DROPPED = "bundle dropped by block engine"
)

const (
	EPHEMERAL_KEY = "no relayer key configured, using an ephemeral key"
)
