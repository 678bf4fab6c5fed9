// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// General server and gate elements.

package hemi

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// Server component.
type Server interface {
	// Imports
	Component
	// Methods
	Serve() // runner
	Stage() *Stage
	Address() string
	ReadTimeout() time.Duration
	WriteTimeout() time.Duration
}

// Server_ is the mixin for all servers.
type Server_[G Gate] struct {
	// Parent
	Component_
	// Assocs
	stage *Stage // current stage
	gates []G    // a server may has many gates
	// States
	address         string        // hostname:port
	colonPort       string        // like: ":300"
	readTimeout     time.Duration // read() timeout. 0 means no timeout
	writeTimeout    time.Duration // write() timeout. 0 means no timeout
	numGates        int32         // number of gates
	maxConnsPerGate int32         // max concurrent connections allowed per gate
}

func (s *Server_[G]) onCreate(name string, stage *Stage) {
	s.MakeComp(name)
	s.stage = stage
}

// onConfigure configures the common server props. defaultAddress is used when .address is absent.
func (s *Server_[G]) onConfigure(defaultAddress string) {
	// address
	var address string
	s.ConfigureString("address", &address, nil, defaultAddress)
	if err := s.SetAddress(address); err != nil {
		panic(err)
	}

	// readTimeout
	s.ConfigureDuration("readTimeout", &s.readTimeout, func(value time.Duration) error {
		if value >= 0 {
			return nil
		}
		return errors.New(".readTimeout has an invalid value")
	}, 0)

	// writeTimeout
	s.ConfigureDuration("writeTimeout", &s.writeTimeout, func(value time.Duration) error {
		if value >= 0 {
			return nil
		}
		return errors.New(".writeTimeout has an invalid value")
	}, 0)

	// numGates
	s.ConfigureInt32("numGates", &s.numGates, func(value int32) error {
		if value > 0 {
			return nil
		}
		return errors.New(".numGates has an invalid value")
	}, s.stage.NumCPU())

	// maxConnsPerGate
	s.ConfigureInt32("maxConnsPerGate", &s.maxConnsPerGate, func(value int32) error {
		if value > 0 {
			return nil
		}
		return errors.New(".maxConnsPerGate has an invalid value")
	}, 100000)
}

// SetAddress validates and sets the listening address.
func (s *Server_[G]) SetAddress(address string) error {
	_, port, err := net.SplitHostPort(address)
	if err != nil || port == "" {
		return fmt.Errorf("bad address: %s", address)
	}
	s.address = address
	s.colonPort = ":" + port
	return nil
}

func (s *Server_[G]) OnShutdown() {
	for _, gate := range s.gates {
		gate.Shut() // this causes gate to close and return immediately
	}
}
func (s *Server_[G]) AddGate(gate G) { s.gates = append(s.gates, gate) }

func (s *Server_[G]) Stage() *Stage               { return s.stage }
func (s *Server_[G]) Address() string             { return s.address }
func (s *Server_[G]) ColonPort() string           { return s.colonPort }
func (s *Server_[G]) ReadTimeout() time.Duration  { return s.readTimeout }
func (s *Server_[G]) WriteTimeout() time.Duration { return s.writeTimeout }
func (s *Server_[G]) NumGates() int32             { return s.numGates }
func (s *Server_[G]) MaxConnsPerGate() int32      { return s.maxConnsPerGate }

// Gate is the interface for all gates. Gates are not components.
type Gate interface {
	// Methods
	ID() int32
	IsShut() bool
	Open() error
	Shut() error
	OnConnClosed()
}

// Gate_ is the mixin for all gates.
type Gate_ struct {
	// Mixins
	_subsWaiter_ // for conns
	// Assocs
	stage *Stage // current stage
	// States
	id       int32        // gate id
	address  string       // listening address
	isShut   atomic.Bool  // is gate shut?
	maxConns int32        // max concurrent conns allowed
	numConns atomic.Int32 // current concurrent conns
}

func (g *Gate_) Init(stage *Stage, id int32, address string, maxConns int32) {
	g.stage = stage
	g.id = id
	g.address = address
	g.isShut.Store(false)
	g.maxConns = maxConns
	g.numConns.Store(0)
}

func (g *Gate_) Stage() *Stage   { return g.stage }
func (g *Gate_) ID() int32       { return g.id }
func (g *Gate_) Address() string { return g.address }

func (g *Gate_) MarkShut()    { g.isShut.Store(true) }
func (g *Gate_) IsShut() bool { return g.isShut.Load() }

func (g *Gate_) DecConns() int32  { return g.numConns.Add(-1) }
func (g *Gate_) ReachLimit() bool { return g.numConns.Add(1) > g.maxConns }

func (g *Gate_) OnConnClosed() {
	g.DecConns()
	g.DecSub()
}
