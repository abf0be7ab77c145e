package config

import (
	"fmt"

	"github.com/nanocurrency/nano-node-sub002/core"
	"github.com/nanocurrency/nano-node-sub002/crypto"
)

// CreateGenesisBlock builds and signs the Open block that seeds the
// lattice's single pre-funded account: its own Source, Representative, and
// Account all resolve to genesisPriv's public key, matching the ledger's
// Bootstrap-time expectations (core.NewLedger's genesisAccount/genesisBalance
// describe this same account out-of-band; this block is the signed artifact
// a fresh peer actually gossips and verifies rather than trusting
// configuration alone).
func CreateGenesisBlock(cfg *Config, genesisPriv crypto.PrivateKey) (*core.Block, error) {
	pub := genesisPriv.Public()
	account := pub.Account()

	configured, err := crypto.HashFromHex(cfg.Genesis.Account)
	if err != nil {
		return nil, fmt.Errorf("config: genesis.account: %w", err)
	}
	if configured != account {
		return nil, fmt.Errorf("config: genesis.account %s does not match the supplied genesis key's account %s", cfg.Genesis.Account, account)
	}

	blk := &core.Block{
		Type:           core.BlockTypeOpen,
		Source:         account,
		Representative: account,
		Account:        account,
	}
	blk.Sign(genesisPriv)
	return blk, nil
}
