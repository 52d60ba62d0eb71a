package source

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/normalize"
)

// flexInt decodes a JSON number, a numeric string, or a formatted price
// string ("$12,345") into an optional int. null and "" leave it unset.
type flexInt struct {
	v *int
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := normalize.ParsePrice(s)
		if err != nil {
			return err
		}
		f.v = v
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return eris.Wrapf(err, "decode number %s", data)
	}
	v := int(math.Round(n))
	f.v = &v
	return nil
}

// Ptr returns the decoded value, or nil when absent.
func (f flexInt) Ptr() *int { return f.v }

// Int returns the decoded value, or 0 when absent.
func (f flexInt) Int() int {
	if f.v == nil {
		return 0
	}
	return *f.v
}

// flexString decodes a JSON string or number into a string.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	*f = flexString(data)
	return nil
}
