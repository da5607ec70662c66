package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

// tokenAlgs lists the signature algorithms the backend is known to sign
// access tokens with. The tokens are only parsed here to read the expiry
// claim; verification is the backend's job on every call we make with them.
var tokenAlgs = []jose.SignatureAlgorithm{jose.HS256, jose.RS256, jose.ES256}

type HTTPClient struct {
	baseURL *url.URL
	client  *http.Client
}

// NewHTTPClient builds a Client speaking the hosted backend's REST surface.
// The API key is attached to every request by the transport.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend base URL: %w", err)
	}

	return &HTTPClient{
		baseURL: u,
		client: &http.Client{
			Timeout: timeout,
			Transport: &apiKeyRoundTripper{
				apiKey: apiKey,
				next:   http.DefaultTransport,
			},
		},
	}, nil
}

type apiKeyRoundTripper struct {
	apiKey string
	next   http.RoundTripper
}

func (t *apiKeyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("apikey", t.apiKey)
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	return t.next.RoundTrip(req)
}

func (c *HTTPClient) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{"email": email, "password": password}

	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &session); err != nil {
		return Session{}, err
	}

	session.Expiry = accessTokenExpiry(ctx, session.AccessToken)

	return session, nil
}

func (c *HTTPClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", "", body, &session); err != nil {
		return Session{}, err
	}

	if session.AccessToken != "" {
		session.Expiry = accessTokenExpiry(ctx, session.AccessToken)
	}

	return session, nil
}

func (c *HTTPClient) SignOut(ctx context.Context, accessToken string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", accessToken, nil, nil)
}

func (c *HTTPClient) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var session Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", body, &session); err != nil {
		return Session{}, err
	}

	session.Expiry = accessTokenExpiry(ctx, session.AccessToken)

	return session, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, accessToken string) (Identity, error) {
	var identity Identity
	if err := c.doJSON(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, &identity); err != nil {
		return Identity{}, err
	}

	return identity, nil
}

func (c *HTTPClient) ResendVerification(ctx context.Context, email string) error {
	body := map[string]string{"type": "signup", "email": email}

	return c.doJSON(ctx, http.MethodPost, "/auth/v1/resend", "", body, nil)
}

func (c *HTTPClient) Select(ctx context.Context, table string, filter Filter, dest any) error {
	return c.doJSON(ctx, http.MethodGet, restPath(table, filter), "", nil, dest)
}

func (c *HTTPClient) Insert(ctx context.Context, table string, rows any) error {
	return c.doREST(ctx, http.MethodPost, restPath(table, nil), rows, "")
}

func (c *HTTPClient) Upsert(ctx context.Context, table string, onConflict string, rows any) error {
	path := restPath(table, nil)
	if onConflict != "" {
		path += "?on_conflict=" + url.QueryEscape(onConflict)
	}

	return c.doREST(ctx, http.MethodPost, path, rows, "resolution=merge-duplicates")
}

func (c *HTTPClient) Delete(ctx context.Context, table string, filter Filter) error {
	return c.doREST(ctx, http.MethodDelete, restPath(table, filter), nil, "")
}

func (c *HTTPClient) UploadObject(ctx context.Context, bucket, path, contentType string, data []byte) (string, error) {
	u := c.baseURL.JoinPath("/storage/v1/object", bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	return c.baseURL.JoinPath("/storage/v1/object/public", bucket, path).String(), nil
}

// doJSON performs a request with an optional JSON body and decodes the JSON
// response into out when out is non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath("/").String()+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

// doREST performs a table write. The prefer header carries PostgREST
// resolution hints such as merge-duplicates for upserts.
func (c *HTTPClient) doREST(ctx context.Context, method, path string, rows any, prefer string) error {
	var body io.Reader
	if rows != nil {
		data, err := json.Marshal(rows)
		if err != nil {
			return fmt.Errorf("encoding rows: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath("/").String()+strings.TrimPrefix(path, "/"), body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if rows != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}

	return nil
}

func restPath(table string, filter Filter) string {
	path := "/rest/v1/" + table
	if len(filter) == 0 {
		return path
	}

	q := url.Values{}
	for column, value := range filter {
		q.Set(column, "eq."+value)
	}

	return path + "?" + q.Encode()
}

// decodeError maps the backend's error payload onto the service error
// taxonomy. The backend's message is preserved verbatim so credential
// failures read exactly as the backend phrased them.
func decodeError(resp *http.Response) error {
	var payload struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		ErrorCode        string `json:"error_code"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(data, &payload)

	description := payload.Msg
	if description == "" {
		description = payload.Message
	}
	if description == "" {
		description = payload.ErrorDescription
	}
	if description == "" {
		description = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &serviceerr.Error{Err: serviceerr.CodeNotFound, Description: description}
	case resp.StatusCode == http.StatusConflict:
		return &serviceerr.Error{Err: serviceerr.CodeConflict, Description: description}
	case resp.StatusCode == http.StatusBadRequest && payload.ErrorCode == "invalid_credentials",
		resp.StatusCode == http.StatusUnauthorized:
		return &serviceerr.Error{Err: serviceerr.CodeInvalidCredentials, Description: description}
	case resp.StatusCode >= http.StatusInternalServerError:
		return &serviceerr.Error{Err: serviceerr.CodeBackendUnavailable, Description: description}
	default:
		return &serviceerr.Error{Err: serviceerr.CodeInvalidRequest, Description: description}
	}
}

// accessTokenExpiry reads the exp claim from the access token. A token that
// cannot be parsed gets a zero expiry, which callers treat as non-expiring;
// the backend still rejects it server-side once stale.
func accessTokenExpiry(ctx context.Context, accessToken string) time.Time {
	token, err := jwt.ParseSigned(accessToken, tokenAlgs)
	if err != nil {
		slogctx.Debug(ctx, "Could not parse access token for expiry", "error", err)
		return time.Time{}
	}

	var claims jwt.Claims
	if err := token.UnsafeClaimsWithoutVerification(&claims); err != nil {
		slogctx.Debug(ctx, "Could not read access token claims", "error", err)
		return time.Time{}
	}
	if claims.Expiry == nil {
		return time.Time{}
	}

	return claims.Expiry.Time()
}
