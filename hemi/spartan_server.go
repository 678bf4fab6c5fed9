// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Spartan server.

package hemi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/hexinfra/spartan/hemi/library/system"
)

func init() {
	RegisterServer("spartanServer", func(name string, stage *Stage) Server {
		s := new(spartanServer)
		s.onCreate(name, stage)
		return s
	})
}

const ( // defaults
	spartanDefaultAddress     = "0.0.0.0:300"
	spartanDefaultUploadSize  = _4K
	spartanDefaultListingType = "text/gemini"
	spartanDefaultType        = "application/octet-stream"
)

const ( // environment overrides
	envAddress       = "SPARTAN_ADDRESS"
	envServerRoot    = "SPARTAN_SERVER_ROOT"
	envMaxUploadSize = "SPARTAN_MAX_UPLOAD_SIZE"
)

// Settings is the configuration snapshot of a spartan server. It is never changed after being published.
type Settings struct {
	Address       string
	ServerRoot    string
	MaxUploadSize int64
	IndexFiles    []string
	ListingType   string
	ExposeErrors  bool
	CGITimeout    time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	mimeTypes     *mimeTable
}

// TypeOf returns the content type of a file name.
func (s *Settings) TypeOf(name string) string { return s.mimeTypes.typeOf(name) }

// spartanServer serves spartan requests from a directory of virtual hosts.
type spartanServer struct {
	// Parent
	Server_[*spartanGate]
	// Assocs
	logger Logger // server logger
	// States
	settings      atomic.Pointer[Settings] // published in OnConfigure
	serverRoot    string                   // dir holding one dir per virtual host
	maxUploadSize int64                    // max dataLen allowed
	indexFiles    []string                 // tried in order for directory locators
	mimeTypes     map[string]string        // custom mime types, merged over the defaults
	defaultType   string                   // for unknown extensions
	listingType   string                   // content type of generated listings
	exposeErrors  bool                     // echo io error texts to peers?
	cgiTimeout    time.Duration            // 0 means no timeout
	loggerSign    string                   // noop, console, simple, ...
	logConfig     LogConfig
}

func (s *spartanServer) onCreate(name string, stage *Stage) {
	s.Server_.onCreate(name, stage)
}

func (s *spartanServer) OnConfigure() {
	s.Server_.onConfigure(spartanDefaultAddress)

	// serverRoot
	defaultRoot := TopDir()
	if defaultRoot == "" {
		defaultRoot = "./"
	}
	s.ConfigureString("serverRoot", &s.serverRoot, func(value string) error {
		if value != "" {
			return nil
		}
		return errors.New(".serverRoot has an invalid value")
	}, defaultRoot)

	// maxUploadSize
	s.ConfigureInt64("maxUploadSize", &s.maxUploadSize, func(value int64) error {
		if value >= 0 {
			return nil
		}
		return errors.New(".maxUploadSize has an invalid value")
	}, spartanDefaultUploadSize)

	// indexFiles
	s.ConfigureStringList("indexFiles", &s.indexFiles, func(value []string) error {
		for _, name := range value {
			if name == "" || name[0] == '/' {
				return errors.New(".indexFiles has an invalid value")
			}
		}
		return nil
	}, []string{"index.gmi", "index.txt"})

	// mimeTypes
	s.ConfigureStringDict("mimeTypes", &s.mimeTypes, nil, nil)

	// defaultType
	s.ConfigureString("defaultType", &s.defaultType, func(value string) error {
		if value != "" {
			return nil
		}
		return errors.New(".defaultType has an invalid value")
	}, spartanDefaultType)

	// listingType
	s.ConfigureString("listingType", &s.listingType, func(value string) error {
		if value != "" {
			return nil
		}
		return errors.New(".listingType has an invalid value")
	}, spartanDefaultListingType)

	// exposeErrors
	s.ConfigureBool("exposeErrors", &s.exposeErrors, false)

	// cgiTimeout
	s.ConfigureDuration("cgiTimeout", &s.cgiTimeout, func(value time.Duration) error {
		if value >= 0 {
			return nil
		}
		return errors.New(".cgiTimeout has an invalid value")
	}, 0)

	// logger
	s.ConfigureString("logger", &s.loggerSign, func(value string) error {
		if loggerRegistered(value) {
			return nil
		}
		return errors.New(".logger is not registered")
	}, "console")

	// logTarget
	defaultTarget := ""
	if dir := LogDir(); dir != "" {
		defaultTarget = dir + "/spartan-" + s.Name() + ".log"
	}
	s.ConfigureString("logTarget", &s.logConfig.Target, nil, defaultTarget)

	// logRotate
	s.ConfigureString("logRotate", &s.logConfig.Rotate, func(value string) error {
		if value == "" || value == "day" || value == "hour" {
			return nil
		}
		return errors.New(".logRotate has an invalid value")
	}, "")

	// logBufSize
	s.ConfigureInt32("logBufSize", &s.logConfig.BufSize, func(value int32) error {
		if value >= _1K {
			return nil
		}
		return errors.New(".logBufSize has an invalid value")
	}, _4K)

	if err := s.applyEnv(os.LookupEnv); err != nil {
		panic(err)
	}

	s.settings.Store(s.makeSettings())
}

// applyEnv lets environment variables override configured values.
func (s *spartanServer) applyEnv(lookup func(key string) (string, bool)) error {
	if value, ok := lookup(envAddress); ok && value != "" {
		if err := s.SetAddress(value); err != nil {
			return fmt.Errorf("%s: %w", envAddress, err)
		}
	}
	if value, ok := lookup(envServerRoot); ok && value != "" {
		s.serverRoot = value
	}
	if value, ok := lookup(envMaxUploadSize); ok && value != "" {
		size, err := strconv.ParseInt(value, 10, 64)
		if err != nil || size < 0 {
			return fmt.Errorf("%s: invalid size %q", envMaxUploadSize, value)
		}
		s.maxUploadSize = size
	}
	return nil
}

func (s *spartanServer) makeSettings() *Settings {
	return &Settings{
		Address:       s.Address(),
		ServerRoot:    s.serverRoot,
		MaxUploadSize: s.maxUploadSize,
		IndexFiles:    append([]string(nil), s.indexFiles...),
		ListingType:   s.listingType,
		ExposeErrors:  s.exposeErrors,
		CGITimeout:    s.cgiTimeout,
		ReadTimeout:   s.ReadTimeout(),
		WriteTimeout:  s.WriteTimeout(),
		mimeTypes:     newMimeTable(s.mimeTypes, s.defaultType),
	}
}

func (s *spartanServer) OnPrepare() {
	settings := s.Settings()
	if info, err := os.Stat(settings.ServerRoot); err != nil || !info.IsDir() {
		panic(fmt.Errorf("serverRoot %s of spartanServer=%s is not a directory", settings.ServerRoot, s.Name()))
	}
	s.logger = createLogger(s.loggerSign, &s.logConfig)
}

func (s *spartanServer) Settings() *Settings { return s.settings.Load() }
func (s *spartanServer) Logger() Logger      { return s.logger }

func (s *spartanServer) Serve() { // runner
	for id := int32(0); id < s.NumGates(); id++ {
		gate := new(spartanGate)
		gate.init(id, s)
		if err := gate.Open(); err != nil {
			EnvExitln(err.Error())
		}
		s.AddGate(gate)
		s.IncSub() // gate
		go gate.serve()
	}
	if DebugLevel() >= 1 {
		Printf("spartanServer=%s is serving at %s\n", s.Name(), s.Address())
	}
	s.WaitSubs() // gates
	if s.logger != nil {
		s.logger.Close()
	}
	if DebugLevel() >= 2 {
		Printf("spartanServer=%s done\n", s.Name())
	}
	s.Stage().DecSub() // server
}

func (s *spartanServer) serveConn(conn *spartanConn) { // runner
	gate := conn.gate
	settings := s.Settings()
	conn.setTimeouts(settings.ReadTimeout, settings.WriteTimeout)
	serveSpartan(context.Background(), conn, settings, s.logger)
	conn.closeConn()
	putSpartanConn(conn)
	gate.OnConnClosed()
}

// spartanGate is an opening gate of spartanServer.
type spartanGate struct {
	// Parent
	Gate_
	// Assocs
	server *spartanServer
	// States
	listener *net.TCPListener // the real gate. set after open
}

func (g *spartanGate) init(id int32, server *spartanServer) {
	g.Gate_.Init(server.Stage(), id, server.Address(), server.MaxConnsPerGate())
	g.server = server
}

func (g *spartanGate) Open() error {
	listenConfig := new(net.ListenConfig)
	listenConfig.Control = func(network string, address string, rawConn syscall.RawConn) error {
		return system.SetReusePort(rawConn)
	}
	listener, err := listenConfig.Listen(context.Background(), "tcp", g.Address())
	if err == nil {
		g.listener = listener.(*net.TCPListener)
	}
	return err
}
func (g *spartanGate) Shut() error {
	g.MarkShut()
	return g.listener.Close() // breaks serve()
}

func (g *spartanGate) serve() { // runner
	connID := int64(0)
	for {
		tcpConn, err := g.listener.AcceptTCP()
		if err != nil {
			if g.IsShut() {
				break
			} else {
				continue
			}
		}
		g.IncSub() // conn
		if g.ReachLimit() {
			g.justClose(tcpConn)
			continue
		}
		conn := getSpartanConn(connID, g, tcpConn)
		if DebugLevel() >= 2 {
			Printf("spartanGate=%d accepted conn=%d from %s\n", g.ID(), connID, tcpConn.RemoteAddr())
		}
		go g.server.serveConn(conn) // conn is put to pool in serveConn()
		connID++
	}
	g.WaitSubs() // conns
	if DebugLevel() >= 2 {
		Printf("spartanGate=%d done\n", g.ID())
	}
	g.server.DecSub() // gate
}

func (g *spartanGate) justClose(tcpConn *net.TCPConn) {
	tcpConn.Close()
	g.OnConnClosed()
}
