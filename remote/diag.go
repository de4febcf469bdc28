// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package remote

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/farcall/farcall/wire"
)

// Diagnostic operations: read-only views of the service's condition.

func (s *Server) getHealth(ctx context.Context, req wire.HealthRequest) wire.HealthResponse {
	requests, succeeded, failed, elapsed := s.Stats()
	rsp := wire.HealthResponse{
		Healthy:       true,
		State:         "healthy",
		UptimeSeconds: time.Since(s.since).Seconds(),
		Details: map[string]string{
			"requests_total":      strconv.FormatInt(requests, 10),
			"requests_successful": strconv.FormatInt(succeeded, 10),
			"requests_failed":     strconv.FormatInt(failed, 10),
			"average_elapsed_ms":  strconv.FormatFloat(avgMillis(elapsed, requests), 'f', 3, 64),
		},
	}
	if req.Detailed {
		// Process resource usage is best effort: a probe failure degrades the
		// snapshot, not the call.
		if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
			if mi, err := proc.MemoryInfo(); err == nil {
				rsp.MemoryRSSBytes = mi.RSS
			}
			if pct, err := proc.CPUPercent(); err == nil {
				rsp.CPUPercent = pct
			}
		}
	}
	return rsp
}

func (s *Server) getStatus(ctx context.Context, req wire.StatusRequest) wire.StatusResponse {
	requests, succeeded, failed, elapsed := s.Stats()
	rsp := wire.StatusResponse{
		Status:          wire.OK(),
		UptimeSeconds:   time.Since(s.since).Seconds(),
		Requests:        requests,
		Succeeded:       succeeded,
		Failed:          failed,
		AvgElapsedMilli: avgMillis(elapsed, requests),
	}
	for _, t := range s.reg.Targets() {
		rsp.Targets = append(rsp.Targets, t.String())
	}
	if req.IncludeConfig && s.opts.Config != nil {
		rsp.Config = s.opts.Config()
	}
	return rsp
}

func (s *Server) ping(ctx context.Context, req wire.PingRequest) wire.PingResponse {
	now := time.Now().UnixMilli()
	rsp := wire.PingResponse{
		Message:            "pong: " + req.Message,
		SentUnixMillis:     req.SentUnixMillis,
		ReceivedUnixMillis: now,
	}
	if req.SentUnixMillis > 0 {
		rsp.LatencyMillis = now - req.SentUnixMillis
	}
	return rsp
}

func avgMillis(elapsed time.Duration, n int64) float64 {
	if n == 0 {
		return 0
	}
	return float64(elapsed.Milliseconds()) / float64(n)
}
