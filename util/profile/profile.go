package profile

import (
	"asyncpub/log"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	runtimepprof "runtime/pprof"

	"go.uber.org/zap"
)

// Profile writes a CPU profile for its whole lifetime and a heap profile on
// Stop. Either file may be empty.
type Profile struct {
	cpuf string
	memf string
	cpu  *os.File
}

func Start(cpuf, memf string) (*Profile, error) {
	p := &Profile{cpuf: cpuf, memf: memf}

	if cpuf == "" {
		return p, nil
	}

	f, err := os.Create(cpuf)
	if err != nil {
		return nil, fmt.Errorf("failed to create cpu file %w", err)
	}

	if err := runtimepprof.StartCPUProfile(f); err != nil {
		f.Close()

		return nil, fmt.Errorf("failed to start cpu profile %w", err)
	}

	p.cpu = f
	log.Info("profile.cpu started", zap.String("file", cpuf))

	return p, nil
}

func (p *Profile) Stop() {
	if p.cpu != nil {
		runtimepprof.StopCPUProfile()
		p.cpu.Close()
		p.cpu = nil
	}

	if p.memf != "" {
		writeHeap(p.memf)
	}
}

func writeHeap(memf string) {
	f, err := os.Create(memf)
	if err != nil {
		log.Warn("create mem file error", zap.String("err", err.Error()))

		return
	}
	defer f.Close()

	runtime.GC() // get up-to-date statistics

	if err := runtimepprof.WriteHeapProfile(f); err != nil {
		log.Warn("write mem file error", zap.String("err", err.Error()))
	}
}

// Register mounts the pprof handlers under /debug/pprof/.
func Register(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
}
