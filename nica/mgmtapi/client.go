// Copyright 2026 The NICA Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mgmtapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/pkg/private/serrors"
)

// ProblemError is returned by the Client when the server answers with a
// problem.
type ProblemError struct {
	Problem Problem
}

func (e *ProblemError) Error() string {
	if e.Problem.Detail == "" {
		return fmt.Sprintf("%s (%d)", e.Problem.Title, e.Problem.Status)
	}
	return fmt.Sprintf("%s (%d): %s", e.Problem.Title, e.Problem.Status, e.Problem.Detail)
}

// Client talks to the management API.
type Client struct {
	// Server is the address or URL of the API server. A missing scheme
	// defaults to http.
	Server string
	// HTTPClient is used for the requests. If nil, http.DefaultClient is
	// used.
	HTTPClient *http.Client
}

// Info fetches the engine description.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var info Info
	err := c.do(ctx, http.MethodGet, "/info", nil, &info)
	return info, err
}

// Stats fetches a statistics snapshot.
func (c *Client) Stats(ctx context.Context) (nica.Stats, error) {
	var stats nica.Stats
	err := c.do(ctx, http.MethodGet, "/stats", nil, &stats)
	return stats, err
}

// ReadRegister reads a register of a component.
func (c *Client) ReadRegister(ctx context.Context, dir, component string,
	addr uint32) (Register, error) {

	var reg Register
	err := c.do(ctx, http.MethodGet, registerPath(dir, component, addr), nil, &reg)
	return reg, err
}

// WriteRegister writes a register of a component.
func (c *Client) WriteRegister(ctx context.Context, dir, component string,
	addr uint32, value int32) (Register, error) {

	var reg Register
	err := c.do(ctx, http.MethodPut, registerPath(dir, component, addr),
		RegisterValue{Value: value}, &reg)
	return reg, err
}

// SetCredits updates the host credit registers of ikernel index.
func (c *Client) SetCredits(ctx context.Context, index int, credits Credits) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/ikernels/%d/credits", index),
		credits, nil)
}

func registerPath(dir, component string, addr uint32) string {
	return fmt.Sprintf("/registers/%s/%s/0x%x", dir, component, addr)
}

func (c *Client) do(ctx context.Context, method, path string, body, rsp any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return serrors.Wrap("encoding request", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return serrors.Wrap("creating request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	r, err := client.Do(req)
	if err != nil {
		return serrors.Wrap("requesting", err, "method", method, "path", path)
	}
	defer r.Body.Close()
	if r.StatusCode != http.StatusOK {
		var p Problem
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.Status == 0 {
			return serrors.New("unexpected response", "status", r.Status)
		}
		return &ProblemError{Problem: p}
	}
	if rsp == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(rsp); err != nil {
		return serrors.Wrap("decoding response", err)
	}
	return nil
}

func (c *Client) url(path string) string {
	server := strings.TrimSuffix(c.Server, "/")
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return server + BaseURL + path
}
