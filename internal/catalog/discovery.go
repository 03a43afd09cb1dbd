package catalog

import (
	"context"
	"log"
	"os"
	"strings"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/upstream"
)

// DiscoveryPageSize is the upstream token listing page size.
const DiscoveryPageSize = 1000

// TokenLister is the upstream listing surface discovery depends on.
type TokenLister interface {
	ListTokens(ctx context.Context, page, limit int) ([]upstream.TokenEntry, error)
}

// Discoverer enumerates the upstream token listing and reconciles it against
// the default token table.
type Discoverer struct {
	lister TokenLister
	logger *log.Logger
}

// NewDiscoverer creates a token discoverer.
func NewDiscoverer(lister TokenLister, logger *log.Logger) *Discoverer {
	if logger == nil {
		logger = log.New(os.Stdout, "[discovery] ", log.LstdFlags)
	}
	return &Discoverer{lister: lister, logger: logger}
}

// DiscoverTokens pages through the upstream listing until a short page,
// accumulating tokens keyed by uppercased symbol. Entries missing an id or
// symbol are skipped. Default-table symbols keep their override token_id and
// logo; missing ones are inserted. On total failure the default table is
// returned as the entire catalog.
func (d *Discoverer) DiscoverTokens(ctx context.Context) map[string]domain.Token {
	d.logger.Println("discovering tokens from upstream listing...")

	discovered := make(map[string]domain.Token)
	page := 0

	for {
		entries, err := d.lister.ListTokens(ctx, page, DiscoveryPageSize)
		if err != nil {
			d.logger.Printf("token listing page %d failed: %v", page, err)
			break
		}
		d.logger.Printf("found %d tokens in page %d", len(entries), page)

		for _, entry := range entries {
			if entry.TokenID == 0 || entry.Symbol == "" {
				continue
			}
			sym := strings.ToUpper(entry.Symbol)
			name := entry.TokenName
			if name == "" {
				name = sym
			}
			discovered[sym] = domain.Token{
				Symbol:  sym,
				Name:    name,
				TokenID: entry.TokenID,
				Logo:    domain.DefaultCryptoIcon,
			}
		}

		if len(entries) < DiscoveryPageSize {
			break
		}
		page++
	}

	if len(discovered) == 0 {
		d.logger.Println("no tokens discovered, using default token table")
		return defaultCatalog()
	}

	d.logger.Printf("discovered %d tokens across %d pages", len(discovered), page+1)
	observability.RecordTokensDiscovered(len(discovered))

	// Default-table ids and logos are authoritative.
	for sym, def := range domain.DefaultTokens {
		tok, ok := discovered[sym]
		if !ok {
			d.logger.Printf("default token %s not in listing, adding manually", sym)
			discovered[sym] = def
			continue
		}
		tok.TokenID = def.TokenID
		tok.Logo = def.Logo
		discovered[sym] = tok
	}

	return discovered
}

// defaultCatalog copies the default token table.
func defaultCatalog() map[string]domain.Token {
	out := make(map[string]domain.Token, len(domain.DefaultTokens))
	for sym, tok := range domain.DefaultTokens {
		out[sym] = tok
	}
	return out
}
