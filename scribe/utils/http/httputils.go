// scribe/utils/http/httputils.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxErrorBody caps how much of a failed response ends up in the error.
const maxErrorBody = 2048

func PostJSON(ctx context.Context, url string, body interface{}, resp interface{}) error {
	return PostJSONWithAuth(ctx, url, "", body, resp)
}

// PostJSONWithAuth posts body as JSON with an optional bearer token and decodes
// a 200 response into resp.
func PostJSONWithAuth(ctx context.Context, url, token string, body interface{}, resp interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	r, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(r.Body, maxErrorBody))
		return fmt.Errorf("bad status: %d - %s", r.StatusCode, string(b))
	}
	if resp != nil {
		return json.NewDecoder(r.Body).Decode(resp)
	}
	return nil
}
