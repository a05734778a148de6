package health

import (
	"context"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/common/version"
	"github.com/sirupsen/logrus"
)

const (
	statusOnline   = "online"
	statusDegraded = "degraded"
)

//Response is the JSON body served on the health endpoints
type Response struct {
	Status           string    `json:"status"`
	UptimeSeconds    int64     `json:"uptime_seconds"`
	DiscordConnected bool      `json:"discord_connected"`
	Guilds           int       `json:"guilds"`
	Members          int       `json:"members"`
	MemoryUsageMB    float64   `json:"memory_usage_mb"`
	LastHeartbeat    time.Time `json:"last_heartbeat"`
	Version          string    `json:"version"`
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head><title>rolebot</title></head>
<body>
<h1>rolebot is alive!</h1>
<p>Status: {{.Status}}</p>
<p>Uptime: {{.Uptime}}</p>
<p>Connected to Discord: {{.DiscordConnected}}</p>
<p>Servers: {{.Guilds}}</p>
<p>Members: {{.Members}}</p>
<p>Memory usage: {{printf "%.1f" .MemoryUsageMB}} MB</p>
<p>Version: {{.Version}}</p>
</body>
</html>
`))

//Server serves the health endpoints and status page
type Server struct {
	status     *Status
	router     *gin.Engine
	httpServer *http.Server
	now        func() time.Time
}

//NewServer builds the router for the health server listening on the given port
func NewServer(status *Status, port int, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(statusPage)

	s := &Server{
		status: status,
		router: router,
		now:    time.Now,
	}
	router.GET("/health", s.handleHealth)
	router.GET("/healthz", s.handleHealth)
	router.GET("/", s.handleStatusPage)
	router.NoRoute(s.handleStatusPage)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}
	return s
}

//Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

//Start begins serving in the background. Listen failures are logged since the bot can run without it.
func (s *Server) Start() {
	go func() {
		logrus.Infof("Health server listening on %v", s.httpServer.Addr)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("Health server stopped unexpectedly: %v", err)
		}
	}()
}

//Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) response() Response {
	snap := s.status.Snapshot()
	memoryMB := snap.MemoryMB
	//No heartbeat yet, sample it now
	if snap.LastHeartbeat.IsZero() {
		memoryMB = MemoryUsageMB()
	}
	res := Response{
		Status:           statusDegraded,
		UptimeSeconds:    int64(snap.Uptime(s.now()).Seconds()),
		DiscordConnected: snap.Connected,
		Guilds:           snap.Guilds,
		Members:          snap.Members,
		MemoryUsageMB:    math.Round(memoryMB*100) / 100,
		LastHeartbeat:    snap.LastHeartbeat,
		Version:          version.Version,
	}
	if snap.Connected {
		res.Status = statusOnline
	}
	return res
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.response())
}

func (s *Server) handleStatusPage(c *gin.Context) {
	res := s.response()
	c.HTML(http.StatusOK, "status", gin.H{
		"Status":           res.Status,
		"Uptime":           (time.Duration(res.UptimeSeconds) * time.Second).String(),
		"DiscordConnected": res.DiscordConnected,
		"Guilds":           res.Guilds,
		"Members":          res.Members,
		"MemoryUsageMB":    res.MemoryUsageMB,
		"Version":          res.Version,
	})
}
