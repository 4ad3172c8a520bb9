package service

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"hyperbench/model"
)

// Predicate is one readiness condition.
type Predicate struct {
	Name  string
	Check func(ctx context.Context) (bool, error)
}

func FileExists(path string) Predicate {
	return Predicate{
		Name: "file " + path,
		Check: func(context.Context) (bool, error) {
			_, err := os.Stat(path)
			if os.IsNotExist(err) {
				return false, nil
			}
			return err == nil, err
		},
	}
}

func PortOpen(host string, port int) Predicate {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	return Predicate{
		Name: "port " + addr,
		Check: func(ctx context.Context) (bool, error) {
			d := net.Dialer{Timeout: time.Second}
			conn, err := d.DialContext(ctx, "tcp", addr)
			if err != nil {
				return false, nil
			}
			_ = conn.Close()
			return true, nil
		},
	}
}

func ContainerRunning(rt Runtime, name string) Predicate {
	return Predicate{
		Name: "container " + name,
		Check: func(ctx context.Context) (bool, error) {
			return rt.Running(ctx, name)
		},
	}
}

// Waiter polls predicates with capped exponential backoff until all hold or
// Timeout elapses.
type Waiter struct {
	Timeout     time.Duration
	Interval    time.Duration
	MaxInterval time.Duration
	// ProbePorts enables PortOpen predicates. Hosts running the orchestrator
	// outside the container network usually cannot resolve node names.
	ProbePorts bool
}

func (w Waiter) backoff() wait.Backoff {
	interval := w.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return wait.Backoff{
		Duration: interval,
		Factor:   2,
		Jitter:   0.1,
		Steps:    math.MaxInt32,
		Cap:      w.MaxInterval,
	}
}

// Port returns PortOpen for host:port when port probing is enabled.
func (w Waiter) Port(host string, port int) []Predicate {
	if !w.ProbePorts {
		return nil
	}
	return []Predicate{PortOpen(host, port)}
}

// WaitFor blocks until every predicate holds. Missing the deadline returns a
// model.ErrStartupTimeout error naming the last unmet predicate.
func (w Waiter) WaitFor(ctx context.Context, subject string, preds ...Predicate) error {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := w.backoff()
	var (
		pending string
		lastErr error
	)
	for {
		pending, lastErr = "", nil
		for _, p := range preds {
			ok, err := p.Check(waitCtx)
			if err != nil {
				lastErr = err
			}
			if !ok {
				pending = p.Name
				break
			}
		}
		if pending == "" {
			return nil
		}

		select {
		case <-time.After(b.Step()):
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return errors.WithMessage(ctx.Err(), fmt.Sprintf("waiting for %s", subject))
			}
			return model.NewError(model.ErrStartupTimeout, lastErr,
				"%s not ready after %s, waiting for %s", subject, timeout, pending)
		}
	}
}
