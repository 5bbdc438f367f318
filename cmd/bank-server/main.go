package main

import (
	"FB/configs"
	"FB/network/branch"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	"github.com/goccy/go-json"
)

var (
	host       string
	port       int
	name       string
	preload    bool
	replicas   string
	store      string
	dir        string
	debug      bool
	logFile    bool
	cpuProfile string
	memProfile string
)

func usage() {
	flag.PrintDefaults()
}

func init() {
	flag.StringVar(&host, "host", "127.0.0.1", "the address to bind")
	flag.IntVar(&port, "port", 0, "the port to listen on (required)")
	flag.StringVar(&name, "name", "", "the branch name (required)")
	flag.BoolVar(&preload, "preload", false, "seed two demo accounts on an empty store")
	flag.StringVar(&replicas, "replicas", "[]",
		`JSON list of replicas, e.g. '[["127.0.0.1",9001],"127.0.0.1:9002"]'`)
	flag.StringVar(&store, "store", configs.SQLite, "the storage backend: sqlite, sql or mongo")
	flag.StringVar(&dir, "dir", ".", "the directory for database and log files")
	flag.BoolVar(&debug, "debug", false, "print debug info")
	flag.BoolVar(&logFile, "log_file", false, "log debug info into a log file")
	flag.StringVar(&cpuProfile, "cpu_prof", "", "write cpu profiling")
	flag.StringVar(&memProfile, "mem_prof", "", "write memory profiling")
	flag.Usage = usage
}

// parseReplicas accepts both ["host", port] pairs and "host:port" strings.
func parseReplicas(arg string) ([]string, error) {
	var items []interface{}
	if err := json.Unmarshal([]byte(arg), &items); err != nil {
		return nil, fmt.Errorf("invalid replicas list: %v", err)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case []interface{}:
			if len(v) < 2 {
				return nil, fmt.Errorf("invalid replica entry %v", v)
			}
			h, ok := v[0].(string)
			p, ok2 := v[1].(float64)
			if !ok || !ok2 {
				return nil, fmt.Errorf("invalid replica entry %v", v)
			}
			out = append(out, h+":"+strconv.Itoa(int(p)))
		case string:
			out = append(out, v)
		default:
			return nil, fmt.Errorf("invalid replica entry %v", v)
		}
	}
	return out, nil
}

func main() {
	flag.Parse()
	if debug {
		configs.ShowDebugInfo = true
		configs.ShowWarnings = true
		configs.ShowTestInfo = true
	}
	if logFile {
		configs.LogToFile = true
		f, err := os.OpenFile(fmt.Sprintf("logs_%s_%v.log", name, time.Now().Unix()),
			os.O_RDWR|os.O_CREATE, 0666)
		if err != nil {
			log.Fatalf("error opening file: %v", err)
		}
		defer f.Close()
		log.SetOutput(io.Writer(f))
	}
	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			log.Fatal("could not create CPU profile: ", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal("could not start CPU profile: ", err)
		}
		defer pprof.StopCPUProfile()
	}
	configs.StorageType = store

	repl, err := parseReplicas(replicas)
	if err != nil {
		log.Fatal(err)
	}
	srv, err := branch.NewBranch(&branch.Options{
		Host:     host,
		Port:     port,
		Name:     name,
		Preload:  preload,
		Replicas: repl,
		Dir:      dir,
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("[%s] server listening on %s (replicas=%v)\n", name, srv.Addr(), repl)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("shutting down")
		srv.Close()
		if memProfile != "" {
			f, err := os.Create(memProfile)
			if err != nil {
				log.Fatal("could not create memory profile: ", err)
			}
			defer f.Close()
			runtime.GC()
			if err := pprof.WriteHeapProfile(f); err != nil {
				log.Fatal("could not write memory profile: ", err)
			}
		}
		os.Exit(0)
	}()

	srv.Run()
}
