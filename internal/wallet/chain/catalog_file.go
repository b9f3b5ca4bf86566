package chain

import (
	"context"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultRequiredConfirmations = 12

// CatalogFile is the on-disk (TOML) form of the chain catalog.
//
//	[[chains]]
//	blockchain = "eth"
//	network = "mainnet"
//	family = "evm"
//	rpc_urls = ["https://rpc-a", "https://rpc-b"]
//	evm_chain_id = 1
//
//	  [[chains.tokens]]
//	  symbol = "USDT"
//	  contract_address = "0xdAC17F958D2ee523a2206206994597C13D831ec7"
//	  decimals = 6
type CatalogFile struct {
	Chains []CatalogChain `toml:"chains"`
}

type CatalogChain struct {
	Blockchain            string         `toml:"blockchain"`
	Network               string         `toml:"network"`
	Family                string         `toml:"family"`
	RPCURLs               []string       `toml:"rpc_urls"`
	RequiredConfirmations int64          `toml:"required_confirmations"`
	EVMChainID            int64          `toml:"evm_chain_id"`
	NativeSymbol          string         `toml:"native_symbol"`
	NativeDecimals        int32          `toml:"native_decimals"`
	FeeMode               string         `toml:"fee_mode"`
	Disabled              bool           `toml:"disabled"`
	Tokens                []CatalogToken `toml:"tokens"`
}

type CatalogToken struct {
	Symbol          string `toml:"symbol"`
	ContractAddress string `toml:"contract_address"`
	Decimals        int32  `toml:"decimals"`
	Disabled        bool   `toml:"disabled"`
}

// LoadCatalogFile decodes and validates a catalog file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	var f CatalogFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode chain catalog %s", path)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warn().Str("path", path).Interface("keys", undecoded).Msg("Chain catalog contains unknown keys")
	}

	if err := f.validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

// DecodeCatalog decodes a catalog from TOML text.
func DecodeCatalog(data string) (*CatalogFile, error) {
	var f CatalogFile
	if _, err := toml.Decode(data, &f); err != nil {
		return nil, errors.Wrap(err, "failed to decode chain catalog")
	}

	if err := f.validate(); err != nil {
		return nil, err
	}

	return &f, nil
}

func (f *CatalogFile) validate() error {
	seen := make(map[Pair]struct{}, len(f.Chains))

	for i := range f.Chains {
		c := &f.Chains[i]
		pair := NewPair(c.Blockchain, c.Network)

		if pair.IsZero() {
			return errors.Errorf("chains[%d]: blockchain and network are required", i)
		}

		if _, ok := seen[pair]; ok {
			return errors.Errorf("chains[%d]: duplicate pair %s", i, pair)
		}
		seen[pair] = struct{}{}

		if !Family(c.Family).Valid() {
			return errors.Errorf("chains[%d]: invalid family %q", i, c.Family)
		}

		if len(c.RPCURLs) == 0 {
			return errors.Errorf("chains[%d]: at least one rpc url is required", i)
		}

		if c.RequiredConfirmations < 0 {
			return errors.Errorf("chains[%d]: required_confirmations must not be negative", i)
		}

		switch FeeMode(c.FeeMode) {
		case "", FeeModeSeparate, FeeModeInclusive:
		default:
			return errors.Errorf("chains[%d]: invalid fee_mode %q", i, c.FeeMode)
		}
	}

	return nil
}

// Chains converts the file entries to catalog rows, applying defaults.
func (f *CatalogFile) ToChains() []*Chain {
	out := make([]*Chain, 0, len(f.Chains))
	for i := range f.Chains {
		c := &f.Chains[i]

		confirmations := c.RequiredConfirmations
		if confirmations == 0 {
			confirmations = defaultRequiredConfirmations
		}

		feeMode := FeeMode(c.FeeMode)
		if feeMode == "" {
			feeMode = defaultFeeMode(Family(c.Family))
		}

		decimals := c.NativeDecimals
		if decimals == 0 {
			decimals = defaultNativeDecimals(Family(c.Family))
		}

		out = append(out, &Chain{
			Blockchain:            c.Blockchain,
			Network:               c.Network,
			Family:                Family(c.Family),
			RPCURLs:               strings.Join(c.RPCURLs, ","),
			RequiredConfirmations: confirmations,
			EVMChainID:            c.EVMChainID,
			NativeSymbol:          strings.ToUpper(c.NativeSymbol),
			NativeDecimals:        decimals,
			FeeMode:               feeMode,
			IsActive:              !c.Disabled,
		})
	}

	return out
}

// ToTokens returns the native token of every chain followed by its contract tokens.
func (f *CatalogFile) ToTokens() []*Token {
	out := []*Token{}
	for _, c := range f.ToChains() {
		out = append(out, &Token{
			ID:         uuid.NewString(),
			Blockchain: c.Blockchain,
			Network:    c.Network,
			Symbol:     c.NativeSymbol,
			Decimals:   c.NativeDecimals,
			IsActive:   c.IsActive,
		})
	}

	for i := range f.Chains {
		c := &f.Chains[i]
		for _, t := range c.Tokens {
			out = append(out, &Token{
				ID:              uuid.NewString(),
				Blockchain:      c.Blockchain,
				Network:         c.Network,
				Symbol:          strings.ToUpper(t.Symbol),
				ContractAddress: t.ContractAddress,
				Decimals:        t.Decimals,
				IsActive:        !c.Disabled && !t.Disabled,
			})
		}
	}

	return out
}

// Seed upserts every chain and token of the file into the catalog.
func Seed(ctx context.Context, svc Service, f *CatalogFile) error {
	for _, c := range f.ToChains() {
		if err := svc.UpsertChain(ctx, c); err != nil {
			return err
		}
	}

	for _, t := range f.ToTokens() {
		if err := svc.UpsertToken(ctx, t); err != nil {
			return err
		}
	}

	log.Info().Int("chains", len(f.Chains)).Msg("Chain catalog seeded")

	return nil
}

func defaultFeeMode(f Family) FeeMode {
	if f == FamilyUTXO {
		return FeeModeInclusive
	}

	return FeeModeSeparate
}

func defaultNativeDecimals(f Family) int32 {
	switch f {
	case FamilyUTXO:
		return 8
	case FamilyAccount:
		return 6
	default:
		return 18
	}
}
