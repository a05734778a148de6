package health

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 10 * time.Second

//Pinger periodically requests the health endpoint of a public URL so that hosts which sleep idle processes
//keep this one awake.
type Pinger struct {
	url      string
	interval time.Duration
	client   *http.Client
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

//NewPinger creates a pinger for baseURL. It does nothing until started.
func NewPinger(baseURL string, interval time.Duration) *Pinger {
	return &Pinger{
		url:      strings.TrimRight(baseURL, "/") + "/health",
		interval: interval,
		client:   &http.Client{Timeout: pingTimeout},
		stop:     make(chan struct{}),
	}
}

//Start pings once immediately and then once every interval until Stop is called
func (p *Pinger) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		logrus.Infof("Self-pinger started for %v with interval of %v", p.url, p.interval)
		for {
			if err := p.Ping(context.Background()); err != nil {
				logrus.Errorf("Self-ping failed: %v", err)
			}
			select {
			case <-ticker.C:
			case <-p.stop:
				return
			}
		}
	}()
}

//Ping requests the health endpoint once
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to build request for %v", p.url)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to reach %v", p.url)
	}
	defer resp.Body.Close()
	logrus.Infof("Self-ping successful: %v", resp.StatusCode)
	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("health endpoint returned status %v", resp.StatusCode)
	}
	return nil
}

//Stop ends the ping loop and waits for it to exit
func (p *Pinger) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
	p.wg.Wait()
}
