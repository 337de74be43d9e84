package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/ragassistant/internal/http"
	"github.com/fyrsmithlabs/ragassistant/internal/services"
)

// ExampleServer runs the daemon API on a loopback port and probes /health
// the way the editor plugin does before sending switch events.
func ExampleServer() {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	server, err := httpserver.NewServer(services.NewRegistry(services.Options{}), zap.NewNop(), &httpserver.Config{
		Host: "127.0.0.1",
		Port: port,
	})
	if err != nil {
		panic(err)
	}
	go server.Start() //nolint:errcheck // returns http.ErrServerClosed on shutdown

	url := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	var health httpserver.HealthResponse
	for attempt := 0; attempt < 50; attempt++ {
		resp, err := http.Get(url)
		if err != nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		_ = json.NewDecoder(resp.Body).Decode(&health)
		resp.Body.Close()
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)

	fmt.Println("health:", health.Status)
	// Output: health: ok
}
