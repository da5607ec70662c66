// Package backendmock is an in-memory stand-in for the hosted backend used
// by unit tests.
package backendmock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/backend"
	"github.com/bharatpratapsingh0802/loan-lounge-nearby/internal/serviceerr"
)

type account struct {
	password string
	identity backend.Identity
}

type ClientOption func(*Client)

type Client struct {
	mu sync.Mutex

	accounts map[string]*account
	tokens   map[string]string // access token -> email
	refresh  map[string]string // refresh token -> email
	tables   map[string][]map[string]any
	objects  map[string][]byte

	signInErr, signUpErr, signOutErr  error
	getUserErr, resendErr, refreshErr error
	selectErr, insertErr, upsertErr   error
	deleteErr, uploadErr              error

	resendCount int
}

// WithAccount seeds a known account. Confirmed controls whether the email
// already counts as verified.
func WithAccount(email, password string, role backend.Role, confirmed bool) ClientOption {
	return func(c *Client) {
		identity := backend.Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Metadata:  map[string]any{"user_type": string(role)},
			CreatedAt: time.Now(),
		}
		if confirmed {
			now := time.Now()
			identity.ConfirmedAt = &now
		}
		c.accounts[email] = &account{password: password, identity: identity}
	}
}

func WithRows(table string, rows ...map[string]any) ClientOption {
	return func(c *Client) { c.tables[table] = append(c.tables[table], rows...) }
}

func WithSignInError(err error) ClientOption  { return func(c *Client) { c.signInErr = err } }
func WithSignUpError(err error) ClientOption  { return func(c *Client) { c.signUpErr = err } }
func WithSignOutError(err error) ClientOption { return func(c *Client) { c.signOutErr = err } }
func WithGetUserError(err error) ClientOption { return func(c *Client) { c.getUserErr = err } }
func WithResendError(err error) ClientOption  { return func(c *Client) { c.resendErr = err } }
func WithRefreshError(err error) ClientOption { return func(c *Client) { c.refreshErr = err } }
func WithSelectError(err error) ClientOption  { return func(c *Client) { c.selectErr = err } }
func WithInsertError(err error) ClientOption  { return func(c *Client) { c.insertErr = err } }
func WithUpsertError(err error) ClientOption  { return func(c *Client) { c.upsertErr = err } }
func WithDeleteError(err error) ClientOption  { return func(c *Client) { c.deleteErr = err } }
func WithUploadError(err error) ClientOption  { return func(c *Client) { c.uploadErr = err } }

var _ = backend.Client(&Client{})

// SetInsertError swaps the injected insert failure at runtime, letting a test
// simulate a backend that fails and later recovers.
func (c *Client) SetInsertError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertErr = err
}

// SetSelectError is the runtime counterpart of WithSelectError.
func (c *Client) SetSelectError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selectErr = err
}

// SetGetUserError is the runtime counterpart of WithGetUserError.
func (c *Client) SetGetUserError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getUserErr = err
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		accounts: make(map[string]*account),
		tokens:   make(map[string]string),
		refresh:  make(map[string]string),
		tables:   make(map[string][]map[string]any),
		objects:  make(map[string][]byte),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Confirm marks the account's email as verified, as the hosted backend does
// when the user clicks the verification link.
func (c *Client) Confirm(email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if acc, ok := c.accounts[email]; ok && acc.identity.ConfirmedAt == nil {
		now := time.Now()
		acc.identity.ConfirmedAt = &now
	}
}

// ResendCount reports how many verification emails were requested.
func (c *Client) ResendCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.resendCount
}

// Rows returns a copy of a table's rows for assertions.
func (c *Client) Rows(table string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]map[string]any(nil), c.tables[table]...)
}

func (c *Client) SignInWithPassword(_ context.Context, email, password string) (backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signInErr != nil {
		return backend.Session{}, c.signInErr
	}

	acc, ok := c.accounts[email]
	if !ok || acc.password != password {
		return backend.Session{}, serviceerr.ErrInvalidCredentials
	}

	return c.issueSession(acc), nil
}

func (c *Client) SignUp(_ context.Context, email, password string, metadata map[string]any) (backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signUpErr != nil {
		return backend.Session{}, c.signUpErr
	}

	if _, ok := c.accounts[email]; ok {
		return backend.Session{}, &serviceerr.Error{Err: serviceerr.CodeConflict, Description: "User already registered"}
	}

	acc := &account{
		password: password,
		identity: backend.Identity{
			ID:        uuid.NewString(),
			Email:     email,
			Metadata:  metadata,
			CreatedAt: time.Now(),
		},
	}
	c.accounts[email] = acc

	return c.issueSession(acc), nil
}

func (c *Client) SignOut(_ context.Context, accessToken string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signOutErr != nil {
		return c.signOutErr
	}

	delete(c.tokens, accessToken)

	return nil
}

func (c *Client) RefreshSession(_ context.Context, refreshToken string) (backend.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refreshErr != nil {
		return backend.Session{}, c.refreshErr
	}

	email, ok := c.refresh[refreshToken]
	if !ok {
		return backend.Session{}, serviceerr.ErrSessionExpired
	}
	delete(c.refresh, refreshToken)

	return c.issueSession(c.accounts[email]), nil
}

func (c *Client) GetUser(_ context.Context, accessToken string) (backend.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.getUserErr != nil {
		return backend.Identity{}, c.getUserErr
	}

	email, ok := c.tokens[accessToken]
	if !ok {
		return backend.Identity{}, serviceerr.ErrNotSignedIn
	}

	return c.accounts[email].identity, nil
}

func (c *Client) ResendVerification(_ context.Context, email string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resendErr != nil {
		return c.resendErr
	}

	if _, ok := c.accounts[email]; !ok {
		return serviceerr.ErrNotFound
	}
	c.resendCount++

	return nil
}

func (c *Client) Select(_ context.Context, table string, filter backend.Filter, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.selectErr != nil {
		return c.selectErr
	}

	matched := make([]map[string]any, 0)
	for _, row := range c.tables[table] {
		if rowMatches(row, filter) {
			matched = append(matched, row)
		}
	}

	data, err := json.Marshal(matched)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *Client) Insert(_ context.Context, table string, rows any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.insertErr != nil {
		return c.insertErr
	}

	decoded, err := decodeRows(rows)
	if err != nil {
		return err
	}

	c.tables[table] = append(c.tables[table], decoded...)

	return nil
}

func (c *Client) Upsert(_ context.Context, table string, onConflict string, rows any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.upsertErr != nil {
		return c.upsertErr
	}

	decoded, err := decodeRows(rows)
	if err != nil {
		return err
	}

	for _, row := range decoded {
		replaced := false
		if onConflict != "" {
			for i, existing := range c.tables[table] {
				if fmt.Sprint(existing[onConflict]) == fmt.Sprint(row[onConflict]) {
					c.tables[table][i] = row
					replaced = true
					break
				}
			}
		}
		if !replaced {
			c.tables[table] = append(c.tables[table], row)
		}
	}

	return nil
}

func (c *Client) Delete(_ context.Context, table string, filter backend.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.deleteErr != nil {
		return c.deleteErr
	}

	kept := c.tables[table][:0]
	for _, row := range c.tables[table] {
		if !rowMatches(row, filter) {
			kept = append(kept, row)
		}
	}
	c.tables[table] = kept

	return nil
}

func (c *Client) UploadObject(_ context.Context, bucket, path, _ string, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uploadErr != nil {
		return "", c.uploadErr
	}

	c.objects[bucket+"/"+path] = data

	return "https://backend.example/storage/v1/object/public/" + bucket + "/" + path, nil
}

func (c *Client) issueSession(acc *account) backend.Session {
	accessToken := uuid.NewString()
	refreshToken := uuid.NewString()
	c.tokens[accessToken] = acc.identity.Email
	c.refresh[refreshToken] = acc.identity.Email

	return backend.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		Expiry:       time.Now().Add(time.Hour),
		User:         acc.identity,
	}
}

func rowMatches(row map[string]any, filter backend.Filter) bool {
	for column, value := range filter {
		if fmt.Sprint(row[column]) != value {
			return false
		}
	}

	return true
}

func decodeRows(rows any) ([]map[string]any, error) {
	data, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}

	var decoded []map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		var single map[string]any
		if err := json.Unmarshal(data, &single); err != nil {
			return nil, err
		}
		decoded = []map[string]any{single}
	}

	return decoded, nil
}
