// Package prober is the Service Prober of spec.md §4.4: for every team,
// functionally exercises three fixed endpoints and declares the service
// up if at least two of three respond successfully.
//
// Grounded line-for-line on original_source/backend/checker.py's
// check_endpoint_functionality and check_service: the exact endpoints,
// request shapes, the "body length >= 100 bytes" success criterion, and
// the Partial/Failed error-message formatting are all preserved.
package prober

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/adctf/orchestrator/internal/domain"
	"github.com/adctf/orchestrator/pkg/logger"
)

const (
	minBodyBytes  = 100
	defaultTimeout = 5 * time.Second
)

type endpointCheck struct {
	path        string
	method      string
	form        url.Values
	failMessage string
}

var endpoints = []endpointCheck{
	{path: "/files", method: http.MethodGet, failMessage: "No file listing"},
	{path: "/logs", method: http.MethodPost, form: url.Values{"keyword": {"test"}}, failMessage: "Search not working"},
	{path: "/monitor", method: http.MethodPost, form: url.Values{"host": {"localhost"}}, failMessage: "Monitor command not working"},
}

// Prober functionally probes team services over HTTP.
type Prober struct {
	client  *http.Client
	log     *logger.Logger
	timeout time.Duration
}

// New builds a Prober with a per-request timeout (spec.md §4.4 default:
// 5s, matching original_source's ServiceChecker(timeout=5)).
func New(log *logger.Logger, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{
		client:  &http.Client{Timeout: timeout},
		log:     log,
		timeout: timeout,
	}
}

// checkEndpoint performs one functional check and reports (ok, errorDetail).
func (p *Prober) checkEndpoint(ctx context.Context, baseURL string, ep endpointCheck) (bool, string) {
	var req *http.Request
	var err error

	target := baseURL + ep.path
	if ep.method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(ep.form.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return false, err.Error()
	}

	resp, err := p.client.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
			return false, "Timeout"
		}
		return false, "Connection refused"
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("HTTP %d", resp.StatusCode)
	}

	buf := make([]byte, minBodyBytes)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return false, err.Error()
	}
	if n < minBodyBytes {
		return false, ep.failMessage
	}
	return true, ""
}

// CheckService runs all three functional checks against one team's
// service and classifies it up/down per the >=2/3 rule.
func (p *Prober) CheckService(ctx context.Context, team domain.Team) domain.ServiceProbe {
	baseURL := fmt.Sprintf("http://%s:%d", team.Host, team.Port)
	start := time.Now()

	successes := 0
	var failures []string
	for _, ep := range endpoints {
		ok, detail := p.checkEndpoint(ctx, baseURL, ep)
		if ok {
			successes++
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", ep.path, detail))
	}

	elapsed := time.Since(start).Seconds()
	isUp := successes >= 2

	var errMsg string
	switch {
	case isUp && successes == len(endpoints):
		errMsg = ""
	case isUp:
		errMsg = fmt.Sprintf("Partial (%d/3): %s", successes, strings.Join(failures, "; "))
	default:
		errMsg = fmt.Sprintf("Failed (%d/3): %s", successes, strings.Join(failures, "; "))
	}

	if p.log != nil {
		status := "DOWN"
		if isUp {
			status = "UP"
		}
		p.log.WithFields(logrus.Fields{
			"team_id": team.ID, "status": status, "elapsed_s": elapsed,
		}).Info("service check complete")
	}

	return domain.ServiceProbe{
		TeamID:       team.ID,
		IsUp:         isUp,
		ResponseTime: elapsed,
		ErrorMessage: errMsg,
		CheckedAt:    time.Now(),
	}
}

// CheckAll probes every team sequentially-dispatched but concurrently
// executed, returning one ServiceProbe per team.
func (p *Prober) CheckAll(ctx context.Context, teams []domain.Team) []domain.ServiceProbe {
	results := make([]domain.ServiceProbe, len(teams))
	done := make(chan int, len(teams))

	for i, team := range teams {
		go func(i int, team domain.Team) {
			results[i] = p.CheckService(ctx, team)
			done <- i
		}(i, team)
	}
	for range teams {
		<-done
	}
	return results
}
