package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// APIError is a non-2xx response from the Sheets or Drive API, e.g.
// {"error": {"code": 403, "message": "...", "status": "PERMISSION_DENIED"}}.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("google api error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("google api error %d", e.StatusCode)
}

type googleErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// apiTransport authenticates and rate-limits calls against a Google REST API.
// One limiter is shared by the Sheets and Drive clients built from it, so the
// per-user quota is respected across both.
type apiTransport struct {
	creds   *Credentials
	client  *http.Client
	limiter *rate.Limiter
}

func newAPITransport(creds *Credentials) *apiTransport {
	return &apiTransport{
		creds:   creds,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

func (t *apiTransport) do(ctx context.Context, req *http.Request) (*http.Response, error) {

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	accessToken, err := t.creds.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error requesting google api: %v", err)
	}

	return resp, nil
}

// doJSON performs the request, maps non-2xx responses to *APIError, and
// decodes the body into out (out may be nil).
func (t *apiTransport) doJSON(ctx context.Context, req *http.Request, out any) error {

	resp, err := t.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading google api response: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var parsed googleErrorBody
		if err := json.Unmarshal(body, &parsed); err == nil {
			apiErr.Status = parsed.Error.Status
			apiErr.Message = parsed.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding google api response: %v", err)
	}

	return nil
}
