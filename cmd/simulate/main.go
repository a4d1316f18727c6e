package main

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/maemo32/memsim/internal/config"
	"github.com/maemo32/memsim/internal/sim"
	"github.com/maemo32/memsim/internal/simerr"
	"github.com/maemo32/memsim/internal/stats"
)

func main() {
	if len(os.Args) < 3 {
		logrus.Fatalf("usage: simulate <config.json> <trace-file> [stats-out] [metrics-addr]")
	}
	cfgPath := os.Args[1]
	tracePath := os.Args[2]
	statsPath := "stats.txt"
	if len(os.Args) > 3 {
		statsPath = os.Args[3]
	}
	metricsAddr := ":9100"
	if len(os.Args) > 4 {
		metricsAddr = os.Args[4]
	}

	cfgFile, err := os.Open(cfgPath)
	if err != nil {
		logrus.Fatalf("open config: %v", err)
	}
	defer cfgFile.Close()

	cfg, err := config.LoadJSON(cfgFile)
	if err != nil {
		os.Exit(exitCodeOf(err, 2))
	}

	traceFile, err := os.Open(tracePath)
	if err != nil {
		logrus.Fatalf("open trace: %v", err)
	}
	defer traceFile.Close()

	statsFile, err := os.Create(statsPath)
	if err != nil {
		logrus.Fatalf("create stats file: %v", err)
	}
	defer statsFile.Close()

	s, err := sim.New(*cfg, sim.WithTrace(traceFile), sim.WithStatsFile(statsFile))
	if err != nil {
		os.Exit(exitCodeOf(err, 2))
	}

	prometheus.MustRegister(stats.NewSimCollector(s.Sink()))
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(metricsAddr, nil); err != nil {
			logrus.WithError(err).Error("metrics server stopped")
		}
	}()

	runErr := s.Run()
	code, closeErr := s.Close(runErr)
	if closeErr != nil {
		logrus.Errorf("close stats file: %v", closeErr)
	}
	if runErr != nil {
		logrus.Errorf("simulation ended: %v", runErr)
	} else {
		logrus.Infof("simulation complete")
	}
	os.Exit(code)
}

func exitCodeOf(err error, fallback int) int {
	if se, ok := err.(*simerr.Error); ok {
		return se.Kind().ExitCode()
	}
	logrus.Errorf("%v", err)
	return fallback
}
