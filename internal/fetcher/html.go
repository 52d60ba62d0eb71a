package fetcher

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// ErrEmbeddedJSONNotFound means no <script> element carried the marker.
var ErrEmbeddedJSONNotFound = eris.New("html: embedded json not found")

// ExtractScriptJSON finds the first inline <script> whose text contains
// marker (for example "window.__PRELOADED_STATE__ = ") and decodes the JSON
// value that follows it into v. Trailing statements after the value are
// ignored.
func ExtractScriptJSON(body []byte, marker string, v any) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "html: parse document")
	}

	var payload string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		idx := strings.Index(text, marker)
		if idx < 0 {
			return true
		}
		payload = text[idx+len(marker):]
		return false
	})
	if payload == "" {
		return eris.Wrapf(ErrEmbeddedJSONNotFound, "marker %q", marker)
	}

	if err := json.NewDecoder(strings.NewReader(payload)).Decode(v); err != nil {
		return eris.Wrap(err, "html: decode embedded json")
	}
	return nil
}
