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

package mgmtapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicaproject/nica/nica/credit"
	"github.com/nicaproject/nica/nica/mgmtapi"
)

func TestClient(t *testing.T) {
	srv, e := newServer(t)
	c := &mgmtapi.Client{
		Server:     strings.TrimPrefix(srv.URL, "http://"),
		HTTPClient: srv.Client(),
	}
	ctx := context.Background()

	info, err := c.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "nica-1", info.ID)
	assert.Len(t, info.Ikernels, 2)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Contains(t, stats.Pipelines, "n2h")

	reg, err := c.WriteRegister(ctx, "h2n", "steering", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), reg.Value)
	reg, err = c.ReadRegister(ctx, "h2n", "steering", 0)
	require.NoError(t, err)
	assert.Equal(t, mgmtapi.Register{Direction: "h2n", Component: "steering"}, reg)

	_, err = c.ReadRegister(ctx, "h2n", "ikernel7", 0)
	var pErr *mgmtapi.ProblemError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, http.StatusNotFound, pErr.Problem.Status)
	assert.Equal(t, mgmtapi.NotFound, pErr.Problem.Type)

	require.NoError(t, c.SetCredits(ctx, 1, mgmtapi.Credits{Ring: 3, MaxMSN: 4}))
	require.Eventually(t, func() bool {
		return e.Stats().Credits["1"][3] == credit.Window{MaxMSN: 4}
	}, 5*time.Second, time.Millisecond)
}

func TestClientUnexpectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "teapot", http.StatusTeapot)
	}))
	defer srv.Close()

	c := &mgmtapi.Client{Server: srv.URL + "/"}
	_, err := c.Info(context.Background())
	require.Error(t, err)
	var pErr *mgmtapi.ProblemError
	assert.False(t, errors.As(err, &pErr))
	assert.Contains(t, err.Error(), "unexpected response")
}
