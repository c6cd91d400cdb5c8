package ssdp

import (
	"context"
	"log/slog"
	"time"

	gossdp "github.com/koron/go-ssdp"
)

// searchFunc matches gossdp.Search.
type searchFunc func(searchType string, waitSec int, localAddr string) ([]gossdp.Service, error)

// Searcher sends M-SEARCH requests and collects the responses.
type Searcher struct {
	// LocalAddr is the local "host:port" to send from. Empty uses the default.
	LocalAddr string

	// Logger for operational messages. Nil disables logging.
	Logger *slog.Logger

	search searchFunc
}

// NewSearcher creates a searcher bound to localAddr.
func NewSearcher(localAddr string, logger *slog.Logger) *Searcher {
	return &Searcher{LocalAddr: localAddr, Logger: logger}
}

// Search multicasts an M-SEARCH for st and returns one response message per
// answering service. wait is rounded down to whole seconds, minimum one.
// Cancelling ctx abandons the search; the underlying socket is released once
// the wait elapses.
func (s *Searcher) Search(ctx context.Context, st string, wait time.Duration) ([]*Message, error) {
	waitSec := int(wait / time.Second)
	if waitSec < 1 {
		waitSec = 1
	}
	if st == "" {
		st = TargetAll
	}
	search := s.search
	if search == nil {
		search = func(st string, waitSec int, localAddr string) ([]gossdp.Service, error) {
			return gossdp.Search(st, waitSec, localAddr)
		}
	}

	type result struct {
		services []gossdp.Service
		err      error
	}
	done := make(chan result, 1)
	go func() {
		services, err := search(st, waitSec, s.LocalAddr)
		done <- result{services, err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, res.err
	}

	now := time.Now()
	msgs := make([]*Message, 0, len(res.services))
	for i := range res.services {
		svc := &res.services[i]
		msgs = append(msgs, NewResponse(svc.Type, svc.USN, svc.Location, svc.Server, svc.MaxAge(), now))
	}
	if s.Logger != nil {
		s.Logger.Debug("M-SEARCH complete", "st", st, "responses", len(msgs))
	}
	return msgs, nil
}
