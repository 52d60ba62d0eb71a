package fetcher

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
)

// GetJSON fetches req and decodes the body into a T.
func GetJSON[T any](ctx context.Context, f Fetcher, req Request) (*T, error) {
	body, err := f.Get(ctx, req)
	if err != nil {
		return nil, err
	}
	return DecodeJSON[T](body)
}

// DecodeJSON decodes a single JSON document.
func DecodeJSON[T any](data []byte) (*T, error) {
	var obj T
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}
