// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Component is the configurable component.

package hemi

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"
)

const ( // list of components
	compStage  = 1 + iota // stage
	compServer            // spartanServer, ...
)

var signedComps = map[string]int16{ // static comps. more dynamic comps are signed using signComp() below
	"stage": compStage,
}

func signComp(sign string, comp int16) {
	if have, signed := signedComps[sign]; signed {
		BugExitf("conflicting sign: comp=%d sign=%s\n", have, sign)
	}
	signedComps[sign] = comp
}

var ( // component creators
	creatorsLock   sync.RWMutex
	serverCreators = make(map[string]func(name string, stage *Stage) Server) // indexed by sign
)

func RegisterServer(sign string, create func(name string, stage *Stage) Server) {
	creatorsLock.Lock()
	defer creatorsLock.Unlock()

	if _, ok := serverCreators[sign]; ok {
		BugExitln("server sign conflicted")
	}
	serverCreators[sign] = create
	signComp(sign, compServer)
}

// Component is the interface for all components.
type Component interface {
	MakeComp(name string)
	Name() string

	OnShutdown()

	OnConfigure()
	Find(name string) (value Value, ok bool)
	Prop(name string) (value Value, ok bool)
	ConfigureBool(name string, prop *bool, defaultValue bool)
	ConfigureInt64(name string, prop *int64, check func(value int64) error, defaultValue int64)
	ConfigureInt32(name string, prop *int32, check func(value int32) error, defaultValue int32)
	ConfigureString(name string, prop *string, check func(value string) error, defaultValue string)
	ConfigureDuration(name string, prop *time.Duration, check func(value time.Duration) error, defaultValue time.Duration)
	ConfigureStringList(name string, prop *[]string, check func(value []string) error, defaultValue []string)
	ConfigureStringDict(name string, prop *map[string]string, check func(value map[string]string) error, defaultValue map[string]string)

	OnPrepare()

	setShell(shell Component)
	setParent(parent Component)
	getParent() Component
	setProp(name string, value Value)
}

// Component_ is the parent for all components.
type Component_ struct {
	// Mixins
	_subsWaiter_ // components can have sub components
	// Assocs
	shell  Component // the concrete Component
	parent Component // the parent component, used by config
	// States
	name  string           // main, ...
	props map[string]Value // name1=value1, ...
}

func (c *Component_) MakeComp(name string) {
	c.name = name
	c.props = make(map[string]Value)
}
func (c *Component_) Name() string { return c.name }

func (c *Component_) Find(name string) (value Value, ok bool) {
	for component := c.shell; component != nil; component = component.getParent() {
		if value, ok = component.Prop(name); ok {
			break
		}
	}
	return
}
func (c *Component_) Prop(name string) (value Value, ok bool) {
	value, ok = c.props[name]
	return
}
func (c *Component_) ConfigureBool(name string, prop *bool, defaultValue bool) {
	_configureProp(c, name, prop, (*Value).Bool, nil, defaultValue)
}
func (c *Component_) ConfigureInt64(name string, prop *int64, check func(value int64) error, defaultValue int64) {
	_configureProp(c, name, prop, (*Value).Int64, check, defaultValue)
}
func (c *Component_) ConfigureInt32(name string, prop *int32, check func(value int32) error, defaultValue int32) {
	_configureProp(c, name, prop, (*Value).Int32, check, defaultValue)
}
func (c *Component_) ConfigureString(name string, prop *string, check func(value string) error, defaultValue string) {
	_configureProp(c, name, prop, (*Value).String, check, defaultValue)
}
func (c *Component_) ConfigureDuration(name string, prop *time.Duration, check func(value time.Duration) error, defaultValue time.Duration) {
	_configureProp(c, name, prop, (*Value).Duration, check, defaultValue)
}
func (c *Component_) ConfigureStringList(name string, prop *[]string, check func(value []string) error, defaultValue []string) {
	_configureProp(c, name, prop, (*Value).StringList, check, defaultValue)
}
func (c *Component_) ConfigureStringDict(name string, prop *map[string]string, check func(value map[string]string) error, defaultValue map[string]string) {
	_configureProp(c, name, prop, (*Value).StringDict, check, defaultValue)
}

// _configureProp panics with an error on bad values. Stage.configure() recovers it.
func _configureProp[T any](c *Component_, name string, prop *T, conv func(*Value) (T, bool), check func(value T) error, defaultValue T) {
	if v, ok := c.Find(name); ok {
		if value, ok := conv(&v); ok && check == nil {
			*prop = value
		} else if ok && check != nil {
			if err := check(value); err == nil {
				*prop = value
			} else {
				panic(fmt.Errorf("%s is error in %s: %s", name, c.name, err.Error()))
			}
		} else {
			panic(fmt.Errorf("invalid %s in %s", name, c.name))
		}
	} else {
		*prop = defaultValue
	}
}

func (c *Component_) setShell(shell Component)         { c.shell = shell }
func (c *Component_) setParent(parent Component)       { c.parent = parent }
func (c *Component_) getParent() Component             { return c.parent }
func (c *Component_) setProp(name string, value Value) { c.props[name] = value }

// compDict
type compDict[T Component] map[string]T

func (d compDict[T]) walk(method func(T)) {
	for _, component := range d {
		method(component)
	}
}
func (d compDict[T]) goWalk(method func(T)) {
	for _, component := range d {
		go method(component)
	}
}

// createStage creates a new stage.
func createStage() *Stage {
	stage := new(Stage)
	stage.onCreate()
	stage.setShell(stage)
	return stage
}

// Stage represents a running stage in the process.
//
// A stage owns all servers created from one piece of configuration. When the
// process is told to quit, the stage shuts its servers down and waits for them.
type Stage struct {
	// Parent
	Component_
	// Assocs
	servers compDict[Server] // indexed by serverName
	// States
	id     int32
	numCPU int32
}

func (s *Stage) onCreate() {
	s.MakeComp("stage")
	s.numCPU = int32(runtime.NumCPU())
	s.servers = make(compDict[Server])
}
func (s *Stage) OnShutdown() {
	if DebugLevel() >= 2 {
		Printf("stage id=%d shutdown start!!\n", s.id)
	}

	// servers
	s.SubsAddn(len(s.servers))
	s.servers.goWalk(Server.OnShutdown)
	s.WaitSubs()

	if DebugLevel() >= 2 {
		Println("stage servers are down")
	}
}

func (s *Stage) OnConfigure() {
	// sub components
	s.servers.walk(Server.OnConfigure)
}
func (s *Stage) OnPrepare() {
	// sub components
	s.servers.walk(Server.OnPrepare)
}

func (s *Stage) createServer(sign string, name string) Server {
	if s.Server(name) != nil {
		panic(fmt.Errorf("conflicting server with a same name '%s'", name))
	}
	creatorsLock.RLock()
	create, ok := serverCreators[sign]
	creatorsLock.RUnlock()
	if !ok {
		panic(fmt.Errorf("unknown server type: %s", sign))
	}
	server := create(name, s)
	server.setShell(server)
	s.servers[name] = server
	return server
}

func (s *Stage) Server(name string) Server { return s.servers[name] }
func (s *Stage) ID() int32                 { return s.id }
func (s *Stage) NumCPU() int32             { return s.numCPU }

// Start configures, prepares and starts all components. Servers run in their own goroutines.
func (s *Stage) Start(id int32) {
	s.id = id

	if DebugLevel() >= 1 {
		Printf("stageID=%d\n", s.id)
		Printf("numCPU=%d\n", s.numCPU)
		Printf("topDir=%s\n", TopDir())
		Printf("logDir=%s\n", LogDir())
		Printf("tmpDir=%s\n", TmpDir())
		Printf("varDir=%s\n", VarDir())
	}

	if dir := TopDir(); dir != "" {
		if err := os.Chdir(dir); err != nil {
			EnvExitln(err.Error())
		}
	}

	if err := s.configure(); err != nil {
		UseExitln(err.Error())
	}
	if err := s.prepare(); err != nil {
		EnvExitln(err.Error())
	}

	s.startServers() // go server.Serve()
}

// Check configures and prepares the stage without starting servers.
func (s *Stage) Check() error {
	if err := s.configure(); err != nil {
		return err
	}
	return s.prepare()
}

func (s *Stage) configure() (err error) {
	if DebugLevel() >= 1 {
		Println("now configure stage")
	}
	defer func() {
		if x := recover(); x != nil {
			err = _recoveredError(x)
		}
		if DebugLevel() >= 1 {
			Println("stage configured")
		}
	}()
	s.OnConfigure()
	return nil
}
func (s *Stage) prepare() (err error) {
	if DebugLevel() >= 1 {
		Println("now prepare stage")
	}
	defer func() {
		if x := recover(); x != nil {
			err = _recoveredError(x)
		}
		if DebugLevel() >= 1 {
			Println("stage prepared")
		}
	}()
	s.OnPrepare()
	return nil
}

func _recoveredError(x any) error {
	if err, ok := x.(error); ok {
		return err
	}
	return fmt.Errorf("%v", x)
}

func (s *Stage) startServers() {
	for _, server := range s.servers {
		if DebugLevel() >= 1 {
			Printf("server=%s go Serve()\n", server.Name())
		}
		go server.Serve()
	}
}

func (s *Stage) Quit() {
	s.OnShutdown()
	if DebugLevel() >= 2 {
		Printf("stage id=%d: quit.\n", s.id)
	}
}
