// Package analyzer runs the tunneling heuristics over every packet of a
// single capture file.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/velemoonkon/tunnelhunt/pkg/capture"
	"github.com/velemoonkon/tunnelhunt/pkg/config"
	"github.com/velemoonkon/tunnelhunt/pkg/tunnel"
)

// Matcher reports whether a query name is whitelisted
type Matcher interface {
	Query(domain string) bool
}

// Sink receives the verdicts of one capture file
type Sink interface {
	WriteVerdict(v tunnel.Verdict) error
}

// FileResult is the per-file outcome of ProcessFile
type FileResult struct {
	Filename         string
	TotalPackets     int
	MaliciousPackets int
	Err              error
}

// Analyzer classifies packets with a heuristic chain
type Analyzer struct {
	chain tunnel.Chain
}

// New creates an analyzer using the given chain. An empty chain means the
// default heuristics.
func New(chain tunnel.Chain) *Analyzer {
	if len(chain) == 0 {
		chain = tunnel.DefaultChain()
	}
	return &Analyzer{chain: chain}
}

var defaultAnalyzer = New(nil)

// ProcessFile analyzes a capture file with the default heuristics
func ProcessFile(ctx context.Context, path string, wl Matcher, sink Sink) (FileResult, error) {
	return defaultAnalyzer.ProcessFile(ctx, path, wl, sink)
}

// ProcessFile reads path packet by packet and writes a verdict for every
// flagged packet to sink. wl may be nil.
//
// On cancellation or a capture read error the counts gathered so far are
// returned together with the error; verdicts already written stay in the sink.
func (a *Analyzer) ProcessFile(ctx context.Context, path string, wl Matcher, sink Sink) (FileResult, error) {
	res := FileResult{Filename: filepath.Base(path)}

	r, err := capture.Open(path)
	if err != nil {
		return a.fail(res, err)
	}
	defer r.Close()

	start := time.Now()
	progress := rate.Sometimes{Interval: config.Tuning.ProgressInterval}

	for p, err := range r.Packets() {
		if err != nil {
			return a.fail(res, err)
		}
		if err := ctx.Err(); err != nil {
			return a.fail(res, err)
		}

		res.TotalPackets++
		v, flagged, err := a.classify(p, wl)
		if err != nil {
			return a.fail(res, err)
		}
		if flagged {
			if err := sink.WriteVerdict(v); err != nil {
				return a.fail(res, fmt.Errorf("failed to write verdict: %w", err))
			}
			res.MaliciousPackets++
		}

		progress.Do(func() {
			slog.Debug("analyzing", "file", res.Filename, "packets", res.TotalPackets, "malicious", res.MaliciousPackets)
		})
	}

	slog.Info("file analyzed",
		"file", res.Filename,
		"packets", res.TotalPackets,
		"malicious", res.MaliciousPackets,
		"duration", time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (a *Analyzer) fail(res FileResult, err error) (FileResult, error) {
	res.Err = err
	return res, err
}

// classify returns the verdict for one decoded packet
func (a *Analyzer) classify(p capture.Packet, wl Matcher) (tunnel.Verdict, bool, error) {
	switch p.Outcome {
	case capture.Malformed:
		return tunnel.Verdict{}, false, nil
	case capture.InvalidText:
		return tunnel.TextDecodeVerdict(p.Index), true, nil
	case capture.Parsed:
		for _, name := range p.Names {
			if wl != nil && wl.Query(name) {
				continue
			}
			if v, ok := a.chain.Classify(p.Index, name); ok {
				return v, true, nil
			}
		}
		return tunnel.Verdict{}, false, nil
	default:
		return tunnel.Verdict{}, false, fmt.Errorf("packet %d: unhandled capture outcome %v", p.Index, p.Outcome)
	}
}
