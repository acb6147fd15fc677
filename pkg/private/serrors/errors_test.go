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

package serrors_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nicaproject/nica/pkg/private/serrors"
)

type testErrType struct {
	msg string
}

func (e *testErrType) Error() string {
	return e.msg
}

func TestWrap(t *testing.T) {
	t.Run("Is", func(t *testing.T) {
		err := serrors.New("simple err")
		wrapped := serrors.Wrap("msg", err, "port", 3)
		assert.ErrorIs(t, wrapped, err)
		assert.ErrorIs(t, wrapped, wrapped)
	})
	t.Run("As", func(t *testing.T) {
		err := &testErrType{msg: "test err"}
		wrapped := serrors.Wrap("msg", err, "port", 3)
		var errAs *testErrType
		require.True(t, errors.As(wrapped, &errAs))
		assert.Equal(t, err, errAs)
	})
	t.Run("message", func(t *testing.T) {
		err := serrors.Wrap("writing register", errors.New("busy"), "addr", 16, "a", 1)
		assert.Equal(t, "writing register {a=1; addr=16}: busy", err.Error())
	})
}

func TestJoin(t *testing.T) {
	sentinel := errors.New("out of range")
	cause := &testErrType{msg: "cause"}
	err := serrors.Join(sentinel, cause, "index", 7)
	assert.ErrorIs(t, err, sentinel)
	var errAs *testErrType
	require.True(t, errors.As(err, &errAs))
	assert.Equal(t, "out of range {index=7}: cause", err.Error())

	assert.Nil(t, serrors.Join(nil, nil))
	assert.Nil(t, serrors.JoinNoStack(nil, nil))
	assert.ErrorIs(t, serrors.JoinNoStack(sentinel, nil), sentinel)
}

func TestNew(t *testing.T) {
	err1 := serrors.New("err msg", "someCtx", "value")
	err2 := serrors.New("err msg", "someCtx", "value")
	assert.ErrorIs(t, err1, err1)
	assert.False(t, errors.Is(err1, err2))
}

func TestAtMostOneStacktrace(t *testing.T) {
	err := errors.New("core")
	for i := range [20]int{} {
		err = serrors.Wrap("wrap", err, "level", i)
	}

	var b bytes.Buffer
	logger := zap.New(
		zapcore.NewCore(
			zapcore.NewJSONEncoder(zapcore.EncoderConfig{MessageKey: "msg"}),
			zapcore.AddSync(&b),
			zapcore.DebugLevel,
		),
	)
	logger.Sugar().Infow("Failed", "err", err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b.Bytes(), &decoded))
	assert.Equal(t, 1, bytes.Count(b.Bytes(), []byte("stacktrace")))
}
