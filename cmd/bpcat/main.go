// Command bpcat is a stdin-to-bundle-to-stdout demo harness: it reads
// lines from stdin, originates one bundle per line on a send channel,
// and prints whatever the receive channel delivers, the Go-shaped
// equivalent of original_source/app/bpcat.c. Its single channel's
// policy can come from flags/environment or, via -config, from an
// internal/config INI file.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtnagent/bpv6/internal/config"
	"github.com/dtnagent/bpv6/pkg/active"
	"github.com/dtnagent/bpv6/pkg/cla"
	_ "github.com/dtnagent/bpv6/pkg/cla/loopcla"
	_ "github.com/dtnagent/bpv6/pkg/cla/udpcla"
	"github.com/dtnagent/bpv6/pkg/dtntime"
	"github.com/dtnagent/bpv6/pkg/engine"
	"github.com/dtnagent/bpv6/pkg/ipn"
	"github.com/dtnagent/bpv6/pkg/metrics"
	"github.com/dtnagent/bpv6/pkg/routing"
	"github.com/dtnagent/bpv6/pkg/storage"
	"github.com/dtnagent/bpv6/pkg/storage/file"
	"github.com/dtnagent/bpv6/pkg/storage/ram"
)

const bpcatMaxWait = routing.MaxWait

// runSettings is this run's resolved channel policy, whether it came
// from -config or from flags/environment.
type runSettings struct {
	local           ipn.Endpoint
	remote          ipn.Endpoint
	lifetime        uint64
	custody         bool
	fragment        bool
	integrityCheck  bool
	maxBundleLength int
	activeCapacity  int
	storageDir      string
	claName         string
	claChannel      string
}

func main() {
	log.SetLevel(log.InfoLevel)

	configFlag := flag.String("config", "", "internal/config INI file; overrides the flags below when set")
	localFlag := flag.String("local", envOr("BP_LOCAL_ADDRESS", "ipn://1.1"), "local endpoint, ipn://node.service")
	remoteFlag := flag.String("remote", envOr("BP_REMOTE_ADDRESS", "ipn://2.1"), "remote endpoint, ipn://node.service")
	lifetimeFlag := flag.Uint64("lifetime", 3600, "bundle lifetime in seconds, 0 for infinite")
	custodyFlag := flag.Bool("custody", false, "request custody transfer")
	fragFlag := flag.Bool("fragment", false, "allow fragmentation")
	maxLenFlag := flag.Int("max-bundle-length", 4096, "maximum bundle length before fragmentation kicks in")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to serve Prometheus active-table metrics on, e.g. :9100 (disabled if empty)")
	flag.Parse()

	rs, err := resolveSettings(*configFlag, *localFlag, *remoteFlag, *lifetimeFlag, *custodyFlag, *fragFlag, *maxLenFlag)
	if err != nil {
		log.Fatalf("failed to resolve configuration: %v", err)
	}

	var store storage.Store
	if rs.storageDir != "" {
		store = file.New(rs.storageDir)
	} else {
		store = ram.New()
	}
	activeTable, err := active.New(rs.activeCapacity)
	if err != nil {
		log.Fatalf("failed to create active table: %v", err)
	}

	cfg := engine.Config{
		Destination:        rs.remote,
		Lifetime:           rs.lifetime,
		Originate:          true,
		AllowFragmentation: rs.fragment,
		RequestCustody:     rs.custody,
		IntegrityCheck:     rs.integrityCheck,
		MaxBundleLength:    rs.maxBundleLength,
	}
	channel, err := engine.New(rs.local, cfg, store, activeTable)
	if err != nil {
		log.Fatalf("failed to create channel: %v", err)
	}

	link, err := cla.NewCLA(rs.claName, rs.claChannel)
	if err != nil {
		log.Fatalf("failed to create CLA: %v", err)
	}
	if err := link.Connect(); err != nil {
		log.Fatalf("failed to connect CLA: %v", err)
	}

	route := routing.NewTable()
	route.AddRoute(rs.remote.Node, "udp")
	route.AddCLA("udp", link)

	maint := routing.NewMaintenance([]*engine.Channel{channel}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := maint.Start(ctx); err != nil {
		log.Fatalf("failed to start maintenance: %v", err)
	}

	if *metricsAddrFlag != "" {
		serveMetrics(*metricsAddrFlag, activeTable)
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down")
		cancel()
	}()

	link.Subscribe(receiveHandler{channel: channel, maint: maint})

	log.Infof("bpcat ready: local=%s remote=%s custody=%v", rs.local, rs.remote, rs.custody)

	scanner := bufio.NewScanner(os.Stdin)
	go func() {
		for scanner.Scan() {
			line := scanner.Text()
			sendCtx, sendCancel := context.WithTimeout(ctx, bpcatMaxWait)
			if err := channel.Send(sendCtx, []byte(line)); err != nil {
				log.Errorf("send failed: %v", err)
			}
			sendCancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			maint.Stop()
			maint.Wait()
			link.Disconnect()
			return
		default:
		}
		recvCtx, recvCancel := context.WithTimeout(ctx, 200*time.Millisecond)
		obj, err := store.Dequeue(recvCtx, channel.PayloadHandle)
		recvCancel()
		if err != nil {
			continue
		}
		fmt.Println(string(obj.Payload))
	}
}

// resolveSettings loads configPath via internal/config when non-empty,
// taking the agent identity from its [agent] section and the channel
// policy from its first [channel "..."] section; otherwise it builds
// runSettings from the flag/environment values bpcat was invoked with.
func resolveSettings(configPath, localFlag, remoteFlag string, lifetime uint64, custody, fragment bool, maxBundleLength int) (runSettings, error) {
	if configPath == "" {
		local, err := ipn.Parse(localFlag)
		if err != nil {
			return runSettings{}, fmt.Errorf("invalid local endpoint %q: %w", localFlag, err)
		}
		remote, err := ipn.Parse(remoteFlag)
		if err != nil {
			return runSettings{}, fmt.Errorf("invalid remote endpoint %q: %w", remoteFlag, err)
		}
		return runSettings{
			local:           local,
			remote:          remote,
			lifetime:        lifetime,
			custody:         custody,
			fragment:        fragment,
			maxBundleLength: maxBundleLength,
			activeCapacity:  1024,
			claName:         "udpcla",
			claChannel:      fmt.Sprintf("%d:127.0.0.1:%d", local.Node, remote.Node),
		}, nil
	}

	f, err := config.Load(configPath)
	if err != nil {
		return runSettings{}, err
	}
	if len(f.Channels) == 0 {
		return runSettings{}, fmt.Errorf("config %s: no [channel \"...\"] section", configPath)
	}
	ch := f.Channels[0]

	return runSettings{
		local:           ipn.Endpoint{Node: f.Agent.LocalNode, Service: f.Agent.LocalService},
		remote:          ipn.Endpoint{Node: ch.Destination, Service: ch.DestinationService},
		lifetime:        ch.Lifetime,
		custody:         ch.RequestCustody,
		fragment:        ch.AllowFragmentation,
		integrityCheck:  ch.IntegrityCheck,
		maxBundleLength: ch.MaxBundleLength,
		activeCapacity:  f.Agent.ActiveTableCapacity,
		storageDir:      f.Agent.StorageDir,
		claName:         ch.CLA,
		claChannel:      ch.CLAChannel,
	}, nil
}

// serveMetrics starts a background HTTP server exposing table's counters
// at /metrics, the pairing half of cmd/bpstat's client.
func serveMetrics(addr string, table *active.Table) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if err := metrics.WriteActiveTable(w, table); err != nil {
			log.Warnf("failed to write metrics: %v", err)
		}
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("metrics server exited: %v", err)
		}
	}()
}

// receiveHandler feeds raw CLA frames into the channel's Receive path.
type receiveHandler struct {
	channel *engine.Channel
	maint   *routing.Maintenance
}

func (h receiveHandler) Handle(wire []byte) {
	outcome, err := h.channel.Receive(context.Background(), wire, dtntime.NowMs())
	if err != nil {
		log.Warnf("receive error: %v (%v)", err, outcome)
		return
	}
	switch outcome.Result {
	case engine.PendingForward, engine.PendingCustodyTransfer:
		cid, err := h.channel.AcceptCustody(outcome.SID, dtntime.NowMs()+3_600_000)
		if err != nil {
			log.Warnf("accept custody failed: %v", err)
			return
		}
		if outcome.Result == engine.PendingCustodyTransfer {
			// EmitDACS goes out on the next maintenance sweep, the
			// Go-shaped equivalent of bplib_route_periodic_maintenance
			// batching accepted CIDs into one aggregate signal.
			h.maint.QueueAccepted(h.channel, outcome.Custodian, cid)
		}
	case engine.PendingAcknowledgment:
		if errs := h.channel.ConsumeDACS(outcome.DACS); len(errs) > 0 {
			log.Warnf("consume DACS errors: %v", errs)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
