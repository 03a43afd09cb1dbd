package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crypto-converter/internal/domain"
	"crypto-converter/internal/observability"
	"crypto-converter/internal/storage"
)

// Durable snapshot file names under the data directory.
const (
	tokensFileName = "tokens.json"
	pricesFileName = "prices.json"
)

// tokensDocument is the on-disk token catalog snapshot.
type tokensDocument struct {
	Tokens    map[string]domain.Token `json:"tokens"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// pricesDocument is the on-disk price table snapshot.
type pricesDocument struct {
	Prices    map[string]float64   `json:"prices"`
	UpdatedAt map[string]time.Time `json:"updated_at"`
}

// load reads both snapshot files. A missing file means empty initial state;
// a malformed file is logged and treated the same.
func (s *Store) load() {
	if s.dataDir == "" {
		return
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		s.logger.Printf("create data dir: %v", err)
		return
	}

	var tokensDoc tokensDocument
	if ok := s.loadFile(tokensFileName, &tokensDoc); ok && tokensDoc.Tokens != nil {
		s.tokens = tokensDoc.Tokens
		s.logger.Printf("loaded %d tokens from local storage", len(s.tokens))
	}

	var pricesDoc pricesDocument
	if ok := s.loadFile(pricesFileName, &pricesDoc); ok && pricesDoc.Prices != nil {
		s.prices = pricesDoc.Prices
		if pricesDoc.UpdatedAt != nil {
			s.updatedAt = pricesDoc.UpdatedAt
		}
		s.logger.Printf("loaded prices for %d tokens from local storage", len(s.prices))
	}
}

// loadFile unmarshals one snapshot file into out. Returns false when the
// file is missing or unreadable.
func (s *Store) loadFile(name string, out interface{}) bool {
	path := filepath.Join(s.dataDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Printf("read %s: %v", name, err)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Printf("parse %s: %v", name, err)
		return false
	}
	return true
}

// saveTokens persists the token catalog wholesale. Best-effort: a failed
// write is logged and counted, never propagated to the in-memory state.
func (s *Store) saveTokens() error {
	s.mu.RLock()
	doc := tokensDocument{
		Tokens:    make(map[string]domain.Token, len(s.tokens)),
		UpdatedAt: s.now(),
	}
	for sym, tok := range s.tokens {
		doc.Tokens[sym] = tok
	}
	s.mu.RUnlock()

	return s.saveFile(tokensFileName, doc)
}

// savePrices persists the price table wholesale.
func (s *Store) savePrices() error {
	s.mu.RLock()
	doc := pricesDocument{
		Prices:    make(map[string]float64, len(s.prices)),
		UpdatedAt: make(map[string]time.Time, len(s.updatedAt)),
	}
	for sym, price := range s.prices {
		doc.Prices[sym] = price
	}
	for sym, ts := range s.updatedAt {
		doc.UpdatedAt[sym] = ts
	}
	s.mu.RUnlock()

	return s.saveFile(pricesFileName, doc)
}

func (s *Store) saveFile(name string, doc interface{}) error {
	if s.dataDir == "" {
		return nil
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Printf("marshal %s: %v", name, err)
		observability.RecordPersistenceError()
		return fmt.Errorf("%w: marshal %s: %v", storage.ErrPersistence, name, err)
	}

	path := filepath.Join(s.dataDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.logger.Printf("write %s: %v", name, err)
		observability.RecordPersistenceError()
		return fmt.Errorf("%w: write %s: %v", storage.ErrPersistence, name, err)
	}
	return nil
}
