package node

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/chainbft/pbft-core/p2pnet"
	"github.com/chainbft/pbft-core/pbft"
	"github.com/chainbft/pbft-core/roster"
	metric "github.com/chainbft/pbft-core/metrics/libmetric"
	cfg "github.com/tendermint/tendermint/config"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/tendermint/tendermint/libs/service"
	"github.com/tendermint/tendermint/p2p"
	"github.com/tendermint/tendermint/p2p/conn"
	"github.com/tendermint/tendermint/version"
)

// CoreBuilder finishes assembling a pbft.Core once its PeerNet
// collaborator (the p2p reactor) exists, breaking the construction cycle
// between Core (which needs a PeerNet at Options time) and the reactor
// (which needs a Worker wrapping that same Core before it can dispatch
// inbound messages).
type CoreBuilder func(pbft.PeerNet) (*pbft.Core, error)

// Provider constructs a Node from its config, logger, the roster the CLI
// layer assembled from genesis, and a CoreBuilder that closes over
// whatever Options the CLI layer derived from genesis and the private
// validator key. Swapping in a different Provider (a custom transport, an
// external signer) is how an embedding application replaces
// DefaultNewNode without touching this package.
type Provider func(*cfg.Config, log.Logger, *roster.Roster, CoreBuilder) (*Node, error)

// Node wires the p2p transport, the PBFT reactor, and the consensus
// worker into one service with a single Start/Stop lifecycle.
type Node struct {
	service.BaseService

	config *cfg.Config

	transport *p2p.MultiplexTransport
	sw        *p2p.Switch
	nodeInfo  p2p.NodeInfo
	nodeKey   *p2p.NodeKey

	reactor *p2pnet.Reactor
	worker  *pbft.Worker

	metricsSrv *http.Server
}

func DefaultNewNode(config *cfg.Config, logger log.Logger, rst *roster.Roster, buildCore CoreBuilder) (*Node, error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return nil, err
	}
	return NewNode(config, nodeKey, logger, rst, buildCore)
}

func createTransport(nodeInfo p2p.NodeInfo, nodeKey *p2p.NodeKey) *p2p.MultiplexTransport {
	mConnConfig := conn.DefaultMConnConfig()
	return p2p.NewMultiplexTransport(nodeInfo, *nodeKey, mConnConfig)
}

func createSwitch(
	config *cfg.Config,
	transport p2p.Transport,
	reactor *p2pnet.Reactor,
	nodeInfo p2p.NodeInfo,
	nodeKey *p2p.NodeKey,
	p2pLogger log.Logger,
) *p2p.Switch {
	sw := p2p.NewSwitch(config.P2P, transport)
	sw.SetLogger(p2pLogger)
	sw.AddReactor("PBFT", reactor)
	sw.SetNodeInfo(nodeInfo)
	sw.SetNodeKey(nodeKey)

	p2pLogger.Info("p2p node id", "id", nodeKey.ID(), "file", config.NodeKeyFile())
	return sw
}

func makeNodeInfo(config *cfg.Config, nodeKey *p2p.NodeKey) (p2p.NodeInfo, error) {
	nodeInfo := p2p.DefaultNodeInfo{
		ProtocolVersion: p2p.NewProtocolVersion(8, 11, 0),
		DefaultNodeID:   nodeKey.ID(),
		Network:         "pbft-chain",
		Version:         version.TMCoreSemVer,
		Channels: []byte{
			p2pnet.ChannelPrepare,
			p2pnet.ChannelSign,
			p2pnet.ChannelCommit,
			p2pnet.ChannelViewChange,
		},
		Moniker: config.Moniker,
		Other: p2p.DefaultNodeInfoOther{
			TxIndex:    "off",
			RPCAddress: config.RPC.ListenAddress,
		},
	}

	lAddr := config.P2P.ExternalAddress
	if lAddr == "" {
		lAddr = config.P2P.ListenAddress
	}
	nodeInfo.ListenAddr = lAddr

	if err := nodeInfo.Validate(); err != nil {
		return nodeInfo, err
	}
	return nodeInfo, nil
}

func NewNode(config *cfg.Config, nodeKey *p2p.NodeKey, logger log.Logger, rst *roster.Roster, buildCore CoreBuilder) (*Node, error) {
	reactor := p2pnet.NewReactor(rst)
	reactor.SetLogger(logger)

	core, err := buildCore(reactor)
	if err != nil {
		return nil, fmt.Errorf("failed to build consensus core: %w", err)
	}

	worker := pbft.NewWorker(core)
	reactor.SetWorker(worker)

	p2pLogger := logger.With("module", "p2p")

	nodeInfo, err := makeNodeInfo(config, nodeKey)
	if err != nil {
		return nil, err
	}

	transport := createTransport(nodeInfo, nodeKey)
	sw := createSwitch(config, transport, reactor, nodeInfo, nodeKey, p2pLogger)

	n := &Node{
		config:    config,
		transport: transport,
		sw:        sw,
		nodeInfo:  nodeInfo,
		nodeKey:   nodeKey,
		reactor:   reactor,
		worker:    worker,
	}
	n.BaseService = *service.NewBaseService(logger, "Node", n)

	return n, nil
}

func (n *Node) Switch() *p2p.Switch {
	return n.sw
}

func (n *Node) NodeInfo() p2p.NodeInfo {
	return n.nodeInfo
}

// Worker exposes the consensus worker so the CLI layer's sealing loop can
// drive GenerateSeal/GenerateCommit against the same core the reactor
// feeds.
func (n *Node) Worker() *pbft.Worker {
	return n.worker
}

func (n *Node) OnStart() error {
	addr, err := p2p.NewNetAddressString(p2p.IDAddressString(n.nodeKey.ID(), n.config.P2P.ListenAddress))
	if err != nil {
		return err
	}
	if err := n.transport.Listen(*addr); err != nil {
		return err
	}

	if err := n.sw.Start(); err != nil {
		return err
	}

	go n.worker.Run()

	if n.config.Instrumentation.Prometheus {
		n.startMetricsServer()
	}

	n.Logger.Info("started", "peers", n.config.P2P.PersistentPeers)
	if err := n.sw.DialPeersAsync(splitAndTrimEmpty(n.config.P2P.PersistentPeers, ",", " ")); err != nil {
		return fmt.Errorf("could not dial peers from persistent_peers field: %w", err)
	}

	return nil
}

// startMetricsServer serves the consensus core's go-metrics registry as
// JSON on the node's configured Prometheus address/path. It reuses
// tendermint's instrumentation toggle rather than introducing a second
// metrics flag, at the cost of not speaking the Prometheus exposition
// format itself.
func (n *Node) startMetricsServer() {
	set := metric.NewMetricSet()
	set.SetMetrics("pbft", metric.NewRegistryItem(n.worker.Core().Metrics().Registry()))

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		for _, item := range set.GetAllMetrics() {
			w.Write([]byte(item.JSONString()))
			return
		}
		w.Write([]byte("{}"))
	})

	n.metricsSrv = &http.Server{Addr: n.config.Instrumentation.PrometheusListenAddr, Handler: mux}
	go func() {
		if err := n.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.Logger.Error("metrics server stopped", "err", err)
		}
	}()
}

func (n *Node) OnStop() {
	n.worker.Stop()
	if n.metricsSrv != nil {
		n.metricsSrv.Shutdown(context.Background())
	}
	n.sw.Stop()
	n.transport.Close()
}

// splitAndTrimEmpty slices s into subslices separated by sep, trims each
// of cutset, and drops empty results.
func splitAndTrimEmpty(s, sep, cutset string) []string {
	if s == "" {
		return []string{}
	}
	spl := strings.Split(s, sep)
	out := make([]string, 0, len(spl))
	for _, e := range spl {
		e = strings.Trim(e, cutset)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}
