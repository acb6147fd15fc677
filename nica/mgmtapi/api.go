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

// Package mgmtapi implements the http management API of the engine.
package mgmtapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/nicaproject/nica/nica"
	"github.com/nicaproject/nica/nica/credit"
	"github.com/nicaproject/nica/pkg/gateway"
	"github.com/nicaproject/nica/pkg/log"
)

// BaseURL is the prefix of all API routes.
const BaseURL = "/api/v1"

// DefaultRegisterTimeout bounds a register access when the server has no
// timeout configured.
const DefaultRegisterTimeout = 5 * time.Second

// Problem types.
const (
	BadRequest   = "/problems/bad-request"
	NotFound     = "/problems/not-found"
	Unavailable  = "/problems/unavailable"
	Timeout      = "/problems/timeout"
	RegisterFail = "/problems/register-failed"
)

// Engine is the part of the engine the API exposes.
type Engine interface {
	Stats() nica.Stats
	Ikernels() []nica.IkernelInfo
	Components() []string
	Gateway(dir nica.Direction, component string) (*gateway.Client, error)
	SetCredits(i int, regs credit.UpdateRegisters) error
}

// Problem is an RFC 7807 error response.
type Problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Info describes the engine instance.
type Info struct {
	ID         string             `json:"id"`
	Directions []string           `json:"directions"`
	Components []string           `json:"components"`
	Ikernels   []nica.IkernelInfo `json:"ikernels"`
}

// Register is the value of a register.
type Register struct {
	Direction string `json:"direction"`
	Component string `json:"component"`
	Address   uint32 `json:"address"`
	Value     int32  `json:"value"`
}

// RegisterValue is the body of a register write.
type RegisterValue struct {
	Value int32 `json:"value"`
}

// Credits is the body of a host credit update.
type Credits struct {
	Ring   uint8  `json:"ring"`
	MaxMSN uint16 `json:"max_msn"`
	Reset  bool   `json:"reset"`
}

// Server implements the http management API.
type Server struct {
	ID     string
	Engine Engine
	// RegisterTimeout bounds register accesses. If zero,
	// DefaultRegisterTimeout is used.
	RegisterTimeout time.Duration
}

// Handler returns the http handler serving the API below BaseURL.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPut},
	}))
	r.Route(BaseURL, func(r chi.Router) {
		r.Get("/info", s.GetInfo)
		r.Get("/stats", s.GetStats)
		r.Get("/registers/{direction}/{component}/{address}", s.GetRegister)
		r.Put("/registers/{direction}/{component}/{address}", s.SetRegister)
		r.Put("/ikernels/{index}/credits", s.SetCredits)
	})
	return r
}

// GetInfo describes the engine.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	info := Info{
		ID:         s.ID,
		Components: s.Engine.Components(),
		Ikernels:   s.Engine.Ikernels(),
	}
	for _, d := range nica.Directions {
		info.Directions = append(info.Directions, d.String())
	}
	writeJSON(w, http.StatusOK, info)
}

// GetStats returns a snapshot of the engine statistics.
func (s *Server) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.Stats())
}

// GetRegister reads a register.
func (s *Server) GetRegister(w http.ResponseWriter, r *http.Request) {
	reg, client, ok := s.register(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.registerContext(r.Context())
	defer cancel()
	v, err := client.Read(ctx, reg.Address)
	if err != nil {
		registerError(w, r, err)
		return
	}
	reg.Value = v
	writeJSON(w, http.StatusOK, reg)
}

// SetRegister writes a register.
func (s *Server) SetRegister(w http.ResponseWriter, r *http.Request) {
	reg, client, ok := s.register(w, r)
	if !ok {
		return
	}
	var body RegisterValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "malformed body", err)
		return
	}
	ctx, cancel := s.registerContext(r.Context())
	defer cancel()
	if err := client.Write(ctx, reg.Address, body.Value); err != nil {
		registerError(w, r, err)
		return
	}
	reg.Value = body.Value
	log.FromCtx(r.Context()).Info("Register written", "direction", reg.Direction,
		"component", reg.Component, "addr", reg.Address, "value", reg.Value)
	writeJSON(w, http.StatusOK, reg)
}

// SetCredits updates the host credit registers of an ikernel.
func (s *Server) SetCredits(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, "malformed ikernel index", err)
		return
	}
	var body Credits
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "malformed body", err)
		return
	}
	if body.Ring == 0 || body.Ring > credit.MaxRings {
		badRequest(w, "ring out of range", nil)
		return
	}
	regs := credit.UpdateRegisters{
		RingID: credit.RingID(body.Ring),
		MaxMSN: body.MaxMSN,
		Reset:  body.Reset,
	}
	if err := s.Engine.SetCredits(index, regs); err != nil {
		ErrorResponse(w, Problem{
			Type:   NotFound,
			Title:  "unknown ikernel",
			Status: http.StatusNotFound,
			Detail: err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) register(w http.ResponseWriter,
	r *http.Request) (Register, *gateway.Client, bool) {

	reg := Register{
		Direction: chi.URLParam(r, "direction"),
		Component: chi.URLParam(r, "component"),
	}
	dir, err := nica.ParseDirection(reg.Direction)
	if err != nil {
		badRequest(w, "malformed direction", err)
		return Register{}, nil, false
	}
	addr, err := strconv.ParseUint(chi.URLParam(r, "address"), 0, 32)
	if err != nil {
		badRequest(w, "malformed address", err)
		return Register{}, nil, false
	}
	reg.Address = uint32(addr)
	client, err := s.Engine.Gateway(dir, reg.Component)
	if err != nil {
		ErrorResponse(w, Problem{
			Type:   NotFound,
			Title:  "unknown component",
			Status: http.StatusNotFound,
			Detail: err.Error(),
		})
		return Register{}, nil, false
	}
	return reg, client, true
}

func (s *Server) registerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.RegisterTimeout
	if timeout == 0 {
		timeout = DefaultRegisterTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func registerError(w http.ResponseWriter, r *http.Request, err error) {
	p := Problem{Detail: err.Error()}
	switch {
	case errors.Is(err, gateway.ErrBusy):
		p.Type, p.Title, p.Status = Unavailable, "register block busy",
			http.StatusServiceUnavailable
	case errors.Is(err, gateway.ErrFailed), errors.Is(err, gateway.ErrAddress):
		p.Type, p.Title, p.Status = RegisterFail, "register access failed",
			http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		p.Type, p.Title, p.Status = Timeout, "register access timed out",
			http.StatusGatewayTimeout
	default:
		log.FromCtx(r.Context()).Error("Register access", "err", err)
		p.Type, p.Title, p.Status = Unavailable, "register access aborted",
			http.StatusServiceUnavailable
	}
	ErrorResponse(w, p)
}

func badRequest(w http.ResponseWriter, title string, err error) {
	p := Problem{Type: BadRequest, Title: title, Status: http.StatusBadRequest}
	if err != nil {
		p.Detail = err.Error()
	}
	ErrorResponse(w, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	// no point in catching error here, there is nothing we can do about it anymore.
	_ = enc.Encode(v)
}

// ErrorResponse writes p to w.
func ErrorResponse(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	// no point in catching error here, there is nothing we can do about it anymore.
	_ = enc.Encode(p)
}
