// Command node runs a lattice peer: it keeps a ledger, gossips and votes
// on blocks over UDP, cements confirmed blocks, and serves account/block
// state over JSON-RPC.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nanocurrency/nano-node-sub002/alarm"
	"github.com/nanocurrency/nano-node-sub002/config"
	"github.com/nanocurrency/nano-node-sub002/confirm"
	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
	"github.com/nanocurrency/nano-node-sub002/crypto/certgen"
	"github.com/nanocurrency/nano-node-sub002/election"
	"github.com/nanocurrency/nano-node-sub002/network"
	"github.com/nanocurrency/nano-node-sub002/observer"
	"github.com/nanocurrency/nano-node-sub002/processor"
	"github.com/nanocurrency/nano-node-sub002/rpc"
	"github.com/nanocurrency/nano-node-sub002/storage"
	"github.com/nanocurrency/nano-node-sub002/wallet"
)

// electionTick is how often ActiveElections announces its live contests,
// matching the cadence Election.tick's doc comment assumes.
const electionTick = 16 * time.Millisecond

// repCrawlInterval is how often the alarm calls node.RepCrawler. The call
// only reads the representative set that Node.LearnRepresentative fills;
// it does not probe peers.
const repCrawlInterval = 30 * time.Second

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "representative.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new account key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	password := os.Getenv("NANO_PASSWORD")
	if password == "" {
		log.Println("WARNING: NANO_PASSWORD not set — keystore will use an empty password")
	}

	if *genKey {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, priv); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Account: %s\n", pub.Account().String())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var repPriv crypto.PrivateKey
	if cfg.EnableVoting {
		repPriv, err = crypto.PrivKeyFromHex(cfg.RepresentativePrivateKey)
		if err != nil {
			log.Fatalf("representative_private_key: %v", err)
		}
	}

	genesisPriv, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	genesisAccount := genesisPriv.Public().Account()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	ledger := core.NewLedger(db, genesisAccount, cfg.Genesis.Balance)

	if _, err := ledger.AccountInfoGet(core.BeginRead(db), genesisAccount); err == core.ErrNotFound {
		txn := core.BeginWrite(db)
		if err := ledger.Bootstrap(txn); err != nil {
			txn.Discard()
			log.Fatalf("bootstrap: %v", err)
		}
		genesisBlock, err := config.CreateGenesisBlock(cfg, genesisPriv)
		if err != nil {
			txn.Discard()
			log.Fatalf("genesis: %v", err)
		}
		if _, err := ledger.Process(txn, genesisBlock); err != nil {
			txn.Discard()
			log.Fatalf("process genesis: %v", err)
		}
		if err := txn.Commit(); err != nil {
			log.Fatalf("commit genesis: %v", err)
		}
		log.Printf("Genesis block committed: %s", genesisBlock.Hash().String())
	}

	bus := observer.New()
	proc := processor.New(ledger, db, bus)
	proc.SetWorkThreshold(crypto.WorkThreshold)

	weightFn := election.LedgerWeightFunc(ledger, db)
	online := election.NewOnlineReps(weightFn, cfg.OnlineWeightMinimum)
	inactive := election.NewInactiveVoteCache(weightFn)

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for the bootstrap listener")
	}

	bootstrapAddr := ""
	if cfg.BootstrapPort != 0 {
		bootstrapAddr = fmt.Sprintf(":%d", cfg.BootstrapPort)
	}

	// sink is handed to the node below before its vote processor exists;
	// the node isn't Start()ed (no receive loop running yet) until every
	// field is filled in further down.
	sink := &blockSink{processor: proc}
	node, err := network.NewNode(network.Config{
		ListenAddr:    fmt.Sprintf(":%d", cfg.PeeringPort),
		BootstrapAddr: bootstrapAddr,
		NodeKey:       genesisPriv,
		TLS:           tlsCfg,
		Bus:           bus,
		Sink:          sink,
		RepWeight:     weightFn,
	})
	if err != nil {
		log.Fatalf("network: %v", err)
	}

	var localRep func() (crypto.Hash, bool)
	if cfg.EnableVoting {
		account := repPriv.Public().Account()
		localRep = func() (crypto.Hash, bool) { return account, true }
	}

	active := election.NewActiveElections(election.Config{
		Ledger:           ledger,
		Store:            db,
		Bus:              bus,
		Weight:           weightFn,
		Online:           online,
		Inactive:         inactive,
		QuorumPercentage: cfg.OnlineWeightQuorum,
		Broadcaster:      node,
		LocalRep:         localRep,
		KnownReps:        func() []crypto.Hash { return node.RepCrawler(32) },
		MaxReps:          32,
	})
	proc.SetScheduler(active)

	votes := election.NewVoteProcessor(active, weightFn, online, bus)
	sink.votes = votes
	votes.Run()
	defer votes.Stop()

	proc.Run()
	defer proc.Stop()

	cementer := confirm.NewCementer(ledger, db, bus)
	cementer.Start()

	node.Start()
	defer node.Stop()
	log.Printf("Peering on %s", node.LocalAddr())

	for _, sp := range cfg.SeedPeers {
		node.AddPeer(sp.Addr)
		log.Printf("Seeded peer %s", sp.Addr)
	}

	clock := alarm.New()
	defer clock.Stop()
	clock.Every(electionTick, active.Tick)
	clock.Every(repCrawlInterval, func() { node.RepCrawler(32) })

	handler := rpc.NewHandler(ledger, db, proc, cfg.NodeID)
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcServer := rpc.NewServer(rpcAddr, handler, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s", rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}
	if cfg.EnableVoting {
		log.Printf("Voting as representative: %s", repPriv.Public().Account().String())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// Deferred calls unwind in LIFO order: rpcServer -> clock -> node ->
	// cementer's subscription is left live (bus is torn down with the
	// process) -> proc -> votes -> db.
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
