// Package dividends implements the cache-aside dividend read path.
package dividends

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/tao-sentinel/internal/cache"
	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/rs/zerolog"
)

// Policy holds the read path constants.
type Policy struct {
	CacheTTL       time.Duration
	ScanCeiling    int // topics 1..ScanCeiling are scanned when no topic is given
	DefaultTopicID int
}

// Service answers dividend queries from cache, falling back to the ledger.
type Service struct {
	cache   cache.Store
	source  domain.DividendSource
	history domain.HistoryRecorder
	bus     *events.Bus
	policy  Policy
	log     zerolog.Logger

	scheduler      TradeScheduler
	defaultAccount string
}

// NewService creates a dividend query service. history and bus may be nil.
func NewService(
	store cache.Store,
	source domain.DividendSource,
	history domain.HistoryRecorder,
	bus *events.Bus,
	policy Policy,
	log zerolog.Logger,
) *Service {
	return &Service{
		cache:   store,
		source:  source,
		history: history,
		bus:     bus,
		policy:  policy,
		log:     log.With().Str("service", "dividends").Logger(),
	}
}

// CacheKey derives the cache key for a query. Absent parts render as "all".
func CacheKey(topicID *int, accountKey *string) string {
	topic := "all"
	if topicID != nil {
		topic = strconv.Itoa(*topicID)
	}
	account := "all"
	if accountKey != nil {
		account = *accountKey
	}
	return "dividends:" + topic + ":" + account
}

// GetDividends returns a single record when the account (and topic) pin down one value,
// otherwise a batch. Only ledger failures are returned, as *domain.SourceError.
func (s *Service) GetDividends(ctx context.Context, topicID *int, accountKey *string) (domain.DividendResult, error) {
	key := CacheKey(topicID, accountKey)

	if result, ok := s.readCache(ctx, key); ok {
		s.log.Debug().Str("key", key).Msg("Cache hit")
		s.bus.Emit("dividends", &events.DividendsFetchedData{CacheKey: key, Records: len(result.Records()), Cached: true})
		return result.WithCached(true), nil
	}

	entries, err := s.source.FetchDividends(ctx, s.topics(topicID), accountKey)
	if err != nil {
		var se *domain.SourceError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &domain.SourceError{Op: "fetch_dividends", Err: err}
	}

	result, err := s.shape(topicID, accountKey, entries)
	if err != nil {
		return nil, &domain.SourceError{Op: "fetch_dividends", Err: err}
	}
	result = result.WithCached(false)

	s.writeCache(ctx, key, result)
	s.recordHistory(ctx, result)

	s.log.Info().
		Str("key", key).
		Int("records", len(result.Records())).
		Msg("Dividends fetched from source")
	s.bus.Emit("dividends", &events.DividendsFetchedData{CacheKey: key, Records: len(result.Records()), Cached: false})

	return result, nil
}

// ClearCache removes the cached entry for a query and reports whether one existed.
func (s *Service) ClearCache(ctx context.Context, topicID *int, accountKey *string) (bool, error) {
	key := CacheKey(topicID, accountKey)
	existed, err := s.cache.Delete(ctx, key)
	if err != nil {
		return false, &domain.CacheFault{Op: "delete", Key: key, Err: err}
	}

	s.log.Info().Str("key", key).Bool("existed", existed).Msg("Cache entry cleared")
	s.bus.Emit("dividends", &events.CacheClearedData{CacheKey: key, Existed: existed})
	return existed, nil
}

func (s *Service) topics(topicID *int) []int {
	if topicID != nil {
		return []int{*topicID}
	}
	ceiling := s.policy.ScanCeiling
	if ceiling <= 0 {
		ceiling = 1
	}
	ids := make([]int, ceiling)
	for i := range ids {
		ids[i] = i + 1
	}
	return ids
}

// readCache reports a hit only for a present, decodable entry. Faults are logged as misses.
func (s *Service) readCache(ctx context.Context, key string) (domain.DividendResult, bool) {
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(&domain.CacheFault{Op: "get", Key: key, Err: err}).Msg("Cache read failed, treating as miss")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	result, err := domain.DecodeDividendResult(data)
	if err != nil {
		s.log.Warn().Err(&domain.CacheFault{Op: "decode", Key: key, Err: err}).Msg("Corrupt cache entry, treating as miss")
		return nil, false
	}
	return result, true
}

func (s *Service) writeCache(ctx context.Context, key string, result domain.DividendResult) {
	data, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(&domain.CacheFault{Op: "encode", Key: key, Err: err}).Msg("Failed to encode cache entry")
		return
	}
	if err := s.cache.Set(ctx, key, data, s.policy.CacheTTL); err != nil {
		s.log.Warn().Err(&domain.CacheFault{Op: "set", Key: key, Err: err}).Msg("Cache write failed")
	}
}

func (s *Service) recordHistory(ctx context.Context, result domain.DividendResult) {
	if s.history == nil {
		return
	}
	for _, r := range result.Records() {
		err := s.history.RecordDividend(ctx, domain.DividendObservation{
			TopicID:    r.TopicID,
			AccountKey: r.AccountKey,
			Value:      r.Dividend,
			Source:     domain.HistorySourceLedger,
		})
		if err != nil {
			s.log.Warn().
				Err(err).
				Int("topic_id", r.TopicID).
				Str("account_key", r.AccountKey).
				Msg("Failed to record dividend history")
		}
	}
}

// shape applies the result rules:
// no account gives a batch, account and topic give a record, account alone gives
// a record for exactly one match and a batch otherwise. A specified account with
// no data yields a zero record.
func (s *Service) shape(topicID *int, accountKey *string, entries []domain.DividendEntry) (domain.DividendResult, error) {
	records, err := toRecords(entries)
	if err != nil {
		return nil, err
	}

	if accountKey == nil {
		return domain.DividendBatch{Dividends: records}, nil
	}

	if len(records) == 0 {
		topic := s.policy.DefaultTopicID
		if topicID != nil {
			topic = *topicID
		}
		return domain.ZeroDividend(topic, *accountKey), nil
	}

	if topicID != nil || len(records) == 1 {
		return records[0], nil
	}
	return domain.DividendBatch{Dividends: records}, nil
}

// toRecords validates entries and collapses duplicate (topic, account) pairs.
// The last value wins and keeps the position of the first occurrence.
func toRecords(entries []domain.DividendEntry) ([]domain.DividendRecord, error) {
	type pair struct {
		topic   int
		account string
	}

	records := make([]domain.DividendRecord, 0, len(entries))
	index := make(map[pair]int, len(entries))
	for _, e := range entries {
		rec, err := domain.NewDividendRecord(e.TopicID, e.AccountKey, e.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid dividend row: %w", err)
		}
		k := pair{e.TopicID, e.AccountKey}
		if i, ok := index[k]; ok {
			records[i] = rec
			continue
		}
		index[k] = len(records)
		records = append(records, rec)
	}
	return records, nil
}
