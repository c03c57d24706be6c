// Command crane-probe polls a running rig monitor and prints its status.
// It can also switch the crane model or the live source first.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-technocrane/internal/config"
	"github.com/teslashibe/go-technocrane/internal/httpc"
	"github.com/teslashibe/go-technocrane/pkg/monitor"
)

func main() {
	base := flag.String("url", config.MonitorURL(config.DefaultMonitorURL), "Monitor base URL (or set TECHNOCRANE_MONITOR_URL)")
	presetName := flag.String("preset", "", "Switch to this crane model first")
	live := flag.String("live", "", "Set the live source first: true or false")
	interval := flag.Duration("interval", time.Second, "Poll interval")
	count := flag.Int("count", 1, "Number of polls, 0 for until interrupted")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *presetName != "" {
		path := *base + "/api/preset/" + url.PathEscape(*presetName)
		if err := httpc.PutJSON(ctx, path, nil, nil); err != nil {
			fatal(err)
		}
	}
	if *live != "" {
		req := monitor.LiveRequest{Live: *live == "true"}
		if err := httpc.PutJSON(ctx, *base+"/api/live", req, nil); err != nil {
			fatal(err)
		}
	}

	var last uint64
	for i := 0; *count == 0 || i < *count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(*interval):
			}
		}

		var status monitor.StatusResponse
		if err := httpc.GetJSON(ctx, *base+"/api/status", &status); err != nil {
			fatal(err)
		}

		rate := ""
		if i > 0 {
			rate = fmt.Sprintf(" (+%d)", status.Ticks-last)
		}
		last = status.Ticks

		fmt.Printf("%s  preset=%q strategy=%s live=%v ticks=%d%s clients=%d",
			time.Now().Format("15:04:05"), status.Preset, status.Strategy, status.Live, status.Ticks, rate, status.Clients)
		if status.Recording != "" {
			fmt.Printf(" recording=%s", status.Recording)
		}
		if m := status.Metrics; m != nil {
			fmt.Printf(" skipped=%d stalls=%d failures=%d", m.SkippedSteps, m.Stalls, m.Failures)
		}
		fmt.Println()
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "crane-probe: %v\n", err)
	os.Exit(1)
}
