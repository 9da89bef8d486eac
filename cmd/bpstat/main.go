// Command bpstat fetches a running bpcat agent's active-table counters
// over HTTP (the /metrics endpoint bpcat's -metrics-addr flag serves)
// and prints them in Prometheus text exposition format, the paired
// client to bpcat's server half — the same request/response split as
// the teacher's pkg/gateway/http client and server.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	addrFlag := flag.String("addr", "http://127.0.0.1:9100", "base URL of a running bpcat agent's -metrics-addr")
	timeoutFlag := flag.Duration("timeout", 5*time.Second, "HTTP request timeout")
	flag.Parse()

	if err := fetchAndPrint(os.Stdout, *addrFlag, *timeoutFlag); err != nil {
		fmt.Fprintf(os.Stderr, "bpstat: %v\n", err)
		os.Exit(1)
	}
}

func fetchAndPrint(w io.Writer, addr string, timeout time.Duration) error {
	client := http.Client{Timeout: timeout}
	resp, err := client.Get(addr + "/metrics")
	if err != nil {
		return fmt.Errorf("fetch %s/metrics: %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s/metrics: unexpected status %s", addr, resp.Status)
	}
	_, err = io.Copy(w, resp.Body)
	return err
}
