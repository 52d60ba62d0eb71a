package fetcher

import (
	"bytes"
	"net/http"

	"github.com/rotisserie/eris"
)

// ErrBlocked means the marketplace answered with an anti-bot page instead of
// inventory. It is not retried.
var ErrBlocked = eris.New("fetcher: blocked by anti-bot protection")

// BlockKind names the protection that served a block page.
type BlockKind string

const (
	BlockNone       BlockKind = ""
	BlockCloudflare BlockKind = "cloudflare"
	BlockCaptcha    BlockKind = "captcha"
	BlockJSShell    BlockKind = "js_shell"
)

// Inventory pages embed captcha widgets for their lead forms, so body markers
// only count on small responses.
const challengeMaxBody = 16 << 10

// DetectBlock inspects a response for a challenge page. Headers alone decide
// 403/503 replies; body markers are checked only for small bodies.
func DetectBlock(status int, header http.Header, body []byte) BlockKind {
	if status == http.StatusForbidden || status == http.StatusServiceUnavailable {
		if header.Get("cf-ray") != "" || header.Get("cf-mitigated") != "" ||
			header.Get("server") == "cloudflare" {
			return BlockCloudflare
		}
	}
	if len(body) == 0 || len(body) > challengeMaxBody {
		return BlockNone
	}

	lower := bytes.ToLower(body)
	switch {
	case bytes.Contains(lower, []byte("checking your browser")),
		bytes.Contains(lower, []byte("cf-browser-verification")),
		bytes.Contains(lower, []byte("cf-challenge")):
		return BlockCloudflare
	case bytes.Contains(lower, []byte("captcha")),
		bytes.Contains(lower, []byte("px-captcha")),
		bytes.Contains(lower, []byte("access denied")):
		return BlockCaptcha
	case bytes.Contains(lower, []byte("<noscript")) && bytes.Contains(lower, []byte("enable javascript")),
		bytes.Contains(lower, []byte(`http-equiv="refresh"`)):
		return BlockJSShell
	}
	return BlockNone
}

func blockedError(kind BlockKind, host string, status int) error {
	return eris.Wrapf(ErrBlocked, "%s page from %s (status %d)", kind, host, status)
}
