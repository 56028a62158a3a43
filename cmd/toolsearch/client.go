// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Toolsearch Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tserr "github.com/toolsearch/toolsearch/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by client
// commands. Overridden in tests.
var defaultHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// apiClient provides HTTP access to a running toolsearch server.
type apiClient struct {
	baseURL string
	prefix  string
	http    *http.Client
}

// newAPIClient creates a client targeting addr (host:port or a full URL).
func newAPIClient(addr, prefix string) *apiClient {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &apiClient{
		baseURL: strings.TrimSuffix(base, "/"),
		prefix:  prefix,
		http:    defaultHTTPClient,
	}
}

// clientFromFlags honours --address, falling back to server.listen with an
// unspecified host replaced by loopback.
func clientFromFlags(cmd *cobra.Command) *apiClient {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = dialAddress(viper.GetString("server.listen"))
	}
	return newAPIClient(addr, viper.GetString("server.api_prefix"))
}

func dialAddress(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// getJSON performs a GET and decodes the JSON response into dest.
func (c *apiClient) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

// postJSON sends body as JSON and decodes the response into dest.
func (c *apiClient) postJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, dest any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return tserr.Errorf(tserr.CodeCLIRequestFailure, "encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return tserr.Errorf(tserr.CodeCLIRequestFailure, "building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return tserr.Errorf(tserr.CodeCLIServerNotRunning, "server at %s is not running", c.baseURL)
		}
		return tserr.Errorf(tserr.CodeCLIRequestFailure, "request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tserr.New(tserr.CodeCLIRequestFailure, problemDetail(resp),
			tserr.Field("status", resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return tserr.Errorf(tserr.CodeCLIResponseInvalid, "invalid response: %w", err)
	}
	return nil
}

// problemDetail extracts the detail of an RFC 9457 problem body, falling
// back to the raw body.
func problemDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var problem struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &problem) == nil && problem.Detail != "" {
		return "server returned " + resp.Status + ": " + problem.Detail
	}
	return "server returned " + resp.Status + ": " + strings.TrimSpace(string(body))
}

// isDialError reports whether err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
