// Copyright (c) 2020-2025 Zhang Jingcheng <diogin@gmail.com>.
// Copyright (c) 2022-2024 HexInfra Co., Ltd.
// All rights reserved.
// Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.

// Procman package parses the command line, prepares directories, finds the config and runs a stage in this process.

package procman

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hexinfra/spartan/hemi"
	"github.com/hexinfra/spartan/hemi/library/system"
)

// Opts describes the program.
type Opts struct {
	ProgramName  string // spartan, ...
	ProgramTitle string // Spartan, ...
	DebugLevel   int    // default debug level
	DefaultConf  string // used when no config file is found
}

var ( // flags
	debugLevel int
	configFile string
	topDir     string
	logDir     string
	tmpDir     string
	varDir     string
)

const usage = `
%s (%s)
================================================================================

  %s [ACTION] [OPTIONS]

ACTION
------

  serve        # start as server (default)
  check        # dry run to check config
  version      # show version info
  help         # show this message

OPTIONS
-------

  -debug  <level>      # debug level (default: %d. min: 0, max: 2)
  -config <config>     # path to config file (default: conf/%s.conf)
  -top    <path>       # top directory (default: directory of the executable)
  -log    <path>       # log directory (default: <top>/log)
  -tmp    <path>       # tmp directory (default: <top>/tmp)
  -var    <path>       # var directory (default: <top>/var)

  Environment variables SPARTAN_ADDRESS, SPARTAN_SERVER_ROOT and
  SPARTAN_MAX_UPLOAD_SIZE override the config file.

`

func Main(opts *Opts) {
	flag.Usage = func() {
		fmt.Printf(usage, opts.ProgramTitle, hemi.Version, opts.ProgramName, opts.DebugLevel, opts.ProgramName)
	}
	flag.IntVar(&debugLevel, "debug", opts.DebugLevel, "")
	flag.StringVar(&configFile, "config", "", "")
	flag.StringVar(&topDir, "top", "", "")
	flag.StringVar(&logDir, "log", "", "")
	flag.StringVar(&tmpDir, "tmp", "", "")
	flag.StringVar(&varDir, "var", "", "")
	action := "serve"
	if len(os.Args) > 1 && os.Args[1][0] != '-' {
		action = os.Args[1]
		flag.CommandLine.Parse(os.Args[2:])
	} else {
		flag.Parse()
	}

	switch action {
	case "help":
		flag.Usage()
	case "version":
		fmt.Println(hemi.Version)
	case "serve", "check":
		hemi.SetDebugLevel(int32(debugLevel))
		prepareDirs()
		stage, err := newStage(opts)
		if err != nil {
			hemi.UseExitln(err.Error())
		}
		if action == "check" { // dry run
			if err := stage.Check(); err != nil {
				fmt.Println(err.Error())
				os.Exit(hemi.CodeUse)
			}
			fmt.Println("PASS")
			return
		}
		serve(stage)
	default:
		fmt.Printf("unknown action: %s\n", action)
		flag.Usage()
		os.Exit(hemi.CodeUse)
	}
}

func prepareDirs() {
	if topDir == "" {
		topDir = system.ExeDir()
	} else if dir, err := filepath.Abs(topDir); err == nil {
		topDir = dir
	} else {
		hemi.EnvExitln(err.Error())
	}
	topDir = filepath.ToSlash(topDir)
	hemi.SetTopDir(topDir)
	setDir := func(pDir *string, name string, set func(string)) {
		if dir := *pDir; dir == "" {
			*pDir = topDir + "/" + name
		} else if !filepath.IsAbs(dir) {
			*pDir = topDir + "/" + dir
		}
		*pDir = filepath.ToSlash(*pDir)
		set(*pDir)
	}
	setDir(&logDir, "log", hemi.SetLogDir)
	setDir(&tmpDir, "tmp", hemi.SetTmpDir)
	setDir(&varDir, "var", hemi.SetVarDir)
}

func newStage(opts *Opts) (*hemi.Stage, error) {
	base, file, found := findConfig(topDir, configFile, opts.ProgramName, fileExists)
	if !found {
		if configFile != "" {
			return nil, fmt.Errorf("config file %s is not found", configFile)
		}
		if hemi.DebugLevel() >= 1 {
			hemi.Println("no config file is found, use the builtin one")
		}
		return hemi.StageFromText(opts.DefaultConf)
	}
	if hemi.DebugLevel() >= 1 {
		hemi.Printf("use config file %s%s\n", base, file)
	}
	return hemi.StageFromFile(base, file)
}

// findConfig returns the config file to use: the -config flag, then <top>/conf/<program>.conf, then /etc/<program>/<program>.conf.
func findConfig(topDir string, config string, program string, exists func(path string) bool) (base string, file string, found bool) {
	var candidates []string
	if config != "" {
		if filepath.IsAbs(config) {
			candidates = append(candidates, config)
		} else {
			candidates = append(candidates, topDir+"/"+config)
		}
	} else {
		candidates = append(candidates,
			topDir+"/conf/"+program+".conf",
			"/etc/"+program+"/"+program+".conf",
		)
	}
	for _, candidate := range candidates {
		if exists(candidate) {
			return filepath.ToSlash(filepath.Dir(candidate)) + "/", filepath.Base(candidate), true
		}
	}
	return "", "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func serve(stage *hemi.Stage) {
	stage.Start(0)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	if hemi.DebugLevel() >= 1 {
		hemi.Printf("received signal %s, quit\n", sig)
	}
	stage.Quit()
}
