// Package sim wires the whole simulator together: it constructs C1-C10
// from a config.Config, drives the shared clock.Scheduler, and owns the
// trace/statistics objects with deterministic teardown, per §9's design
// note generalizing cache.h's Builder + top-level driver idiom.
package sim

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/maemo32/memsim/internal/addr"
	"github.com/maemo32/memsim/internal/branch"
	"github.com/maemo32/memsim/internal/cache"
	"github.com/maemo32/memsim/internal/clock"
	"github.com/maemo32/memsim/internal/config"
	"github.com/maemo32/memsim/internal/core"
	"github.com/maemo32/memsim/internal/dram"
	"github.com/maemo32/memsim/internal/memrouter"
	"github.com/maemo32/memsim/internal/prefetch"
	"github.com/maemo32/memsim/internal/remap"
	"github.com/maemo32/memsim/internal/replace"
	"github.com/maemo32/memsim/internal/simerr"
	"github.com/maemo32/memsim/internal/stats"
	"github.com/maemo32/memsim/internal/trace"
)

// Simulator owns every constructed component and the shared scheduler.
type Simulator struct {
	cfg config.Config
	log *logrus.Entry

	sched   *clock.Scheduler
	l1      *cache.Cache
	engine  *remap.Engine
	adaptor *dram.Adaptor
	router  *memrouter.Router
	bp      *branch.Predictor
	harness *core.Harness

	sink *stats.Sink
}

// Option configures a Simulator at construction.
type Option func(*buildState)

type buildState struct {
	cfg        config.Config
	log        *logrus.Entry
	traceFile  io.Reader
	statsFile  io.Writer
}

func WithTrace(r io.Reader) Option { return func(b *buildState) { b.traceFile = r } }
func WithStatsFile(w io.Writer) Option { return func(b *buildState) { b.statsFile = w } }
func WithLogger(l *logrus.Entry) Option { return func(b *buildState) { b.log = l } }

// New constructs the full simulator from cfg: address layout, cache
// pipeline, MSHR, prefetch/replacement shims, memory router, remapping
// engine, and DRAM adaptor, wired per §2's control-flow description.
func New(cfg config.Config, opts ...Option) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &buildState{cfg: cfg, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(b)
	}

	s := &Simulator{cfg: cfg, log: b.log, sched: clock.NewScheduler()}
	s.sink = stats.New(b.statsFile)

	rep := buildReplacer(cfg)
	pf := buildPrefetcher(cfg)

	s.router = memrouter.New(cfg.FastMemoryCapacityBytes)
	lineSize := 1 << uint(cfg.OffsetBits)
	s.adaptor = dram.New(dram.Config{
		BackingBytes:   cfg.FastMemoryCapacityBytes + 2*cfg.SlowMemoryCapacityBytes,
		ReadLatency:    100,
		WriteLatency:   100,
		RefreshLatency: 1,
		RemapLatency:   200,
		QueueSize:      64,
		RemapQueueSize: cfg.RemappingRequestQueueLength,
	}, b.log)
	s.engine = remap.New(cfg.RemapConfig(), s.adaptor, b.log)
	s.adaptor.RegisterRemapCallback(func(req remap.RemappingRequest) {
		if err := s.engine.FinishRemapping(req); err != nil {
			s.log.WithError(err).Error("remapping completion violated placement invariant")
		}
		s.sink.Counters.SwappingCount++
		s.sink.Counters.SwappingTrafficBytes += req.Size
	})

	bridge := &memoryBridge{adaptor: s.adaptor, router: s.router, engine: s.engine, sink: s.sink, lineSize: lineSize}

	l1cfg := cache.Config{
		Name: "L1", NumSets: cfg.Sets, NumWays: cfg.Ways,
		Layout:            addrLayout(cfg),
		MSHRSize:          cfg.MSHRSize,
		PQSize:            cfg.PQSize,
		RQSize:            cfg.RQSize,
		WQSize:            cfg.WQSize,
		ReturnedSize:      cfg.RQSize,
		InflightWrites:    cfg.WQSize,
		HitLatency:        cfg.HitLatency,
		FillLatency:       cfg.FillLatency,
		MaxTag:            cfg.TagBandwidth,
		MaxFill:           cfg.FillBandwidth,
		DeadlockThreshold: cfg.DeadlockThreshold,
		PeriodPS:          cfg.PeriodPS,
		PrefetchAsLoad:    cfg.PrefetchAsLoad,
		WQChecksFullAddr:  cfg.WQChecksFullAddr,
		VirtualPrefetch:   cfg.VirtualPrefetch,
	}
	s.l1 = cache.New(l1cfg, bridge, nil, rep, pf, b.log)
	bridge.upstream = s.l1
	s.l1.SetLowerTranslate(&identityTranslator{target: s.l1})

	s.bp = branch.New()

	if b.traceFile != nil {
		s.harness = core.New(s.l1, trace.NewReader(b.traceFile), 0)
		s.l1.RegisterListener(0, s.harness)
	}

	s.sched.Register(s.l1)
	s.sched.Register(s.engine)
	s.sched.Register(s.adaptor)
	if s.harness != nil {
		s.sched.Register(s.harness)
	}

	return s, nil
}

func addrLayout(cfg config.Config) addr.Layout {
	return addr.Layout{OffsetBits: cfg.OffsetBits, NumSets: uint64(cfg.Sets)}
}

func buildReplacer(cfg config.Config) *replace.Shim {
	var policies []replace.Policy
	if cfg.Replacers&config.ReplaceLRU != 0 || cfg.Replacers == 0 {
		policies = append(policies, replace.NewLRU())
	}
	if cfg.Replacers&config.ReplaceSRRIP != 0 {
		policies = append(policies, replace.NewSRRIP(2))
	}
	if cfg.Replacers&config.ReplaceDRRIP != 0 {
		policies = append(policies, replace.NewDRRIP(2))
	}
	if cfg.Replacers&config.ReplaceSHIP != 0 {
		policies = append(policies, replace.NewSHIP(2))
	}
	return replace.NewShim(policies...)
}

func buildPrefetcher(cfg config.Config) *prefetch.Shim {
	lineSize := uint64(1) << uint(cfg.OffsetBits)
	var policies []prefetch.Policy
	if cfg.Prefetchers&config.PrefetchNextLine != 0 {
		policies = append(policies, prefetch.NewNextLine(lineSize))
	}
	if cfg.Prefetchers&config.PrefetchIPStride != 0 {
		policies = append(policies, prefetch.NewIPStride(lineSize, 2))
	}
	if cfg.Prefetchers&config.PrefetchSPP != 0 {
		policies = append(policies, prefetch.NewSPP(lineSize))
	}
	if cfg.Prefetchers&config.PrefetchVaAmpmLite != 0 {
		policies = append(policies, prefetch.NewVaAmpmLite(lineSize))
	}
	if len(policies) == 0 {
		policies = append(policies, prefetch.NewNoOp())
	}
	return prefetch.NewShim(prefetch.ActivateMask(cfg.PrefetchActivateMask), policies...)
}

// Run steps the scheduler until the trace is exhausted and every
// in-flight request has retired, or a fatal error (simerr.Error with Kind
// Deadlock or ConfigInvalid) occurs.
func (s *Simulator) Run() error {
	for {
		_, err := s.sched.Step()
		if err != nil {
			return err
		}
		if s.harness != nil && s.harness.Done() {
			return nil
		}
	}
}

// Close finalizes the statistics file and returns the process exit code
// mandated by §6, given the error (if any) Run returned.
func (s *Simulator) Close(runErr error) (int, error) {
	s.sink.Counters.RemappingQueueCongestion = s.engine.CongestionCount()
	closeErr := s.sink.Close()
	if se, ok := runErr.(*simerr.Error); ok {
		return se.Kind().ExitCode(), closeErr
	}
	if runErr != nil {
		return 2, closeErr
	}
	return 0, closeErr
}

// L1 exposes the constructed L1 cache for tests and statistics readers.
func (s *Simulator) L1() *cache.Cache { return s.l1 }

// Engine exposes the constructed remapping engine for tests.
func (s *Simulator) Engine() *remap.Engine { return s.engine }

// Sink exposes the statistics sink so callers can attach a
// stats.SimCollector for live Prometheus scraping alongside the
// mandatory end-of-run statistics file.
func (s *Simulator) Sink() *stats.Sink { return s.sink }
