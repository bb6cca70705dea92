package utils

const DefaultBufferSize = 32 * 1024
const ToolUserAgent = "minicurl-agent/1.0"

// DefaultSendHeaders are used by post and upload when the caller passes none.
var DefaultSendHeaders = []string{"Content-Type: text/plain"}

// Used by --user-agent randomize
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:136.0) Gecko/20100101 Firefox/136.0",
	"curl/8.5.0",
	"Wget/1.21.4",
}
