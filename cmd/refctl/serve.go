package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"refledger/native/referral"
)

const maxFeedLine = 1 << 20

// feedRequest is one line of the serve input. Fields unused by an operation
// are ignored.
type feedRequest struct {
	Op       string `json:"op"`
	Referee  string `json:"referee,omitempty"`
	Referrer string `json:"referrer,omitempty"`
	Addr     string `json:"addr,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Now      int64  `json:"now,omitempty"`
}

type feedResponse struct {
	Line   int    `json:"line"`
	Op     string `json:"op"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func runServe(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfig, "Path to the config file")
	input := fs.String("input", "-", "Operation feed, one JSON request per line (- for stdin)")
	linger := fs.Bool("linger", false, "Keep serving metrics after the feed ends until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("open feed: %w", err)
		}
		defer f.Close()
		in = f
	}

	l, err := openLedger(*configPath, out)
	if err != nil {
		return err
	}
	defer l.close()

	listener, err := net.Listen("tcp", l.cfg.MetricsAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.cfg.MetricsAddress, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErrs := make(chan error, 1)
	go func() {
		slog.Info("serving metrics", "address", listener.Addr().String())
		serveErrs <- server.Serve(listener)
	}()
	feedDone := make(chan error, 1)
	go func() {
		feedDone <- processFeed(ctx, l.engine, in, out)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErrs:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case runErr = <-feedDone:
		if runErr == nil && *linger {
			select {
			case <-ctx.Done():
			case err := <-serveErrs:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// processFeed applies each request in order and writes one response line per
// request. Failed requests are reported in their response and do not stop the
// feed; blank lines and lines starting with # are skipped.
func processFeed(ctx context.Context, engine *referral.Engine, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFeedLine)
	enc := json.NewEncoder(out)
	line := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		resp := feedResponse{Line: line}
		var req feedRequest
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			resp.Error = fmt.Sprintf("decode request: %v", err)
		} else {
			resp.Op = req.Op
			result, err := applyRequest(engine, req)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Result = result
			}
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read feed: %w", err)
	}
	return nil
}

func applyRequest(engine *referral.Engine, req feedRequest) (any, error) {
	now := parseNow(req.Now)
	op := strings.TrimSpace(req.Op)
	switch op {
	case "register":
		referee, err := parseAddress("referee", req.Referee)
		if err != nil {
			return nil, err
		}
		referrer, err := parseAddress("referrer", req.Referrer)
		if err != nil {
			return nil, err
		}
		if _, err := engine.Register(referee, referrer); err != nil {
			return nil, err
		}
		return true, nil
	case "distribute", "preview":
		referee, err := parseAddress("referee", req.Referee)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount("amount", req.Amount)
		if err != nil {
			return nil, err
		}
		var plan *referral.PayoutPlan
		if op == "preview" {
			plan, err = engine.Preview(referee, amount, now)
		} else {
			plan, err = engine.Distribute(referee, amount, now)
		}
		if err != nil {
			return nil, err
		}
		return newPlanView(plan), nil
	case "touch":
		addr, err := parseAddress("addr", req.Addr)
		if err != nil {
			return nil, err
		}
		if err := engine.Touch(addr, now); err != nil {
			return nil, err
		}
		return true, nil
	case "referrer-of":
		referee, err := parseAddress("referee", req.Referee)
		if err != nil {
			return nil, err
		}
		referrer, ok, err := engine.ReferrerOf(referee)
		if err != nil || !ok {
			return nil, err
		}
		return formatAddress(referrer), nil
	case "is-active":
		referrer, err := parseAddress("referrer", req.Referrer)
		if err != nil {
			return nil, err
		}
		active, err := engine.IsActive(referrer, now)
		if err != nil {
			return nil, err
		}
		return map[string]bool{"active": active}, nil
	case "account":
		addr, err := parseAddress("addr", req.Addr)
		if err != nil {
			return nil, err
		}
		return loadAccountView(engine, addr)
	default:
		return nil, fmt.Errorf("unknown op %q", req.Op)
	}
}
