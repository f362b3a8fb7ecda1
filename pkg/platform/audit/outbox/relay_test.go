package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeSource struct {
	mu        sync.Mutex
	entries   []Entry
	published map[uuid.UUID]bool
	fetchErr  error
}

func (f *fakeSource) FetchUnpublished(_ context.Context, limit int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []Entry
	for _, e := range f.entries {
		if !f.published[e.ID] {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeSource) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.published[id] = true
	}
	return nil
}

type fakeProducer struct {
	produced []*kgo.Record
	failKey  string
}

func (p *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		var err error
		if string(r.Key) == p.failKey {
			err = errors.New("broker unavailable")
		} else {
			p.produced = append(p.produced, r)
		}
		results = append(results, kgo.ProduceResult{Record: r, Err: err})
	}
	return results
}

type RelaySuite struct {
	suite.Suite
	source   *fakeSource
	producer *fakeProducer
	metrics  *Metrics
	relay    *Relay
}

func (s *RelaySuite) SetupTest() {
	s.source = &fakeSource{published: map[uuid.UUID]bool{}}
	for _, asset := range []string{"m1", "m2", "m3"} {
		s.source.entries = append(s.source.entries, Entry{
			ID:          uuid.New(),
			AggregateID: asset,
			EventType:   "asset_created",
			Payload:     []byte(`{"subject":"` + asset + `"}`),
		})
	}
	s.producer = &fakeProducer{}
	s.metrics = NewMetrics(prometheus.NewRegistry())
	s.relay = NewRelay(s.source, s.producer, "mediashare.audit", WithMetrics(s.metrics), WithBatchSize(2))
}

func TestRelaySuite(t *testing.T) {
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) TestRelayOnce() {
	s.Run("publishes a batch keyed by asset", func() {
		n, err := s.relay.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(2, n)
		s.Require().Len(s.producer.produced, 2)
		s.Equal("mediashare.audit", s.producer.produced[0].Topic)
		s.Equal("m1", string(s.producer.produced[0].Key))
		s.Equal("event_type", s.producer.produced[0].Headers[0].Key)
	})

	s.Run("next pass picks up the remainder", func() {
		n, err := s.relay.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(1, n)

		n, err = s.relay.RelayOnce(context.Background())
		s.Require().NoError(err)
		s.Equal(0, n)
		s.Equal(float64(3), testutil.ToFloat64(s.metrics.Published))
	})
}

func (s *RelaySuite) TestRejectedRecordsStayUnpublished() {
	s.producer.failKey = "m2"

	n, err := s.relay.RelayOnce(context.Background())
	s.Require().Error(err)
	s.Equal(1, n)
	s.False(s.source.published[s.source.entries[1].ID])
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Failed))

	s.producer.failKey = ""
	n, err = s.relay.RelayOnce(context.Background())
	s.Require().NoError(err)
	s.Equal(2, n)
}

func (s *RelaySuite) TestFetchError() {
	s.source.fetchErr = errors.New("db down")
	_, err := s.relay.RelayOnce(context.Background())
	s.Require().ErrorIs(err, s.source.fetchErr)
	s.Empty(s.producer.produced)
}

func (s *RelaySuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.NoError(s.relay.Run(ctx))
}
