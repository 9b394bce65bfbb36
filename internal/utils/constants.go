package utils

const (
	ContentTypeHeader = "Content-Type"
	UserAgentHeader   = "User-Agent"
)

const JSONContentType = "application/json"

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxPageSize  = 100
)

const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "OPTIONS,GET,POST"
	CORSAllowHeaders = "Content-Type,Accept,X-Requested-With,X-Bridge-Sender"
	CORSMaxAge       = "86400"
)

const (
	HTTPCacheControl       = "no-cache, no-store, max-age=0, must-revalidate"
	HTTPPragma             = "no-cache"
	HTTPExpires            = "0"
	HTTPContentTypeOptions = "nosniff"
	HTTPFrameOptions       = "DENY"
)

// MaxBridgeBodySize bounds a single bridge message.
const MaxBridgeBodySize = 1 << 20
