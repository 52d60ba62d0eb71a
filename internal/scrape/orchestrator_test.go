package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/source"
)

type mockSearcher struct {
	mock.Mock
	src model.Source
}

func (m *mockSearcher) Source() model.Source { return m.src }

func (m *mockSearcher) Search(ctx context.Context, q source.Query) ([]model.Listing, error) {
	args := m.Called(ctx, q)
	listings, _ := args.Get(0).([]model.Listing)
	return listings, args.Error(1)
}

func listings(src model.Source, n int) []model.Listing {
	out := make([]model.Listing, n)
	for i := range out {
		out[i] = model.Listing{VIN: string(src) + string(rune('A'+i)), Source: src}
	}
	return out
}

func newOrchestrator(t *testing.T, searchers ...*mockSearcher) *Orchestrator {
	t.Helper()
	reg := source.NewRegistry()
	var srcs []model.Source
	for _, s := range searchers {
		reg.Register(s)
		srcs = append(srcs, s.src)
	}
	o := New(reg, Options{Sources: srcs, MaxCalls: 7})
	o.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC) }
	return o
}

func TestScrape_AggregatesSources(t *testing.T) {
	at := &mockSearcher{src: model.SourceAutoTrader}
	al := &mockSearcher{src: model.SourceAutolist}
	at.On("Search", mock.Anything, mock.MatchedBy(func(q source.Query) bool {
		return q.ModelKey == "compass" && q.MaxCalls == 7 && q.ScrapedAt.Nanosecond() == 0
	})).Return(listings(model.SourceAutoTrader, 2), nil)
	al.On("Search", mock.Anything, mock.Anything).Return(listings(model.SourceAutolist, 3), nil)

	res, err := newOrchestrator(t, at, al).Scrape(context.Background(), "compass", config.ModelConfig{}, config.LocationConfig{})
	require.NoError(t, err)

	assert.Len(t, res.Listings, 5)
	assert.Equal(t, 5, res.Diagnostics.Total)
	assert.Equal(t, 2, res.Diagnostics.SourceCounts[model.SourceAutoTrader])
	assert.Equal(t, 3, res.Diagnostics.SourceCounts[model.SourceAutolist])
	assert.Equal(t, model.SourceOK, res.Diagnostics.SourceStatus[model.SourceAutolist])
	at.AssertExpectations(t)
	al.AssertExpectations(t)
}

func TestScrape_CallCeilingIsDegraded(t *testing.T) {
	al := &mockSearcher{src: model.SourceAutolist}
	cc := &mockSearcher{src: model.SourceCarsDotCom}
	al.On("Search", mock.Anything, mock.Anything).
		Return(listings(model.SourceAutolist, 4), eris.Wrap(source.ErrCallCeiling, "autolist stopped"))
	cc.On("Search", mock.Anything, mock.Anything).Return(listings(model.SourceCarsDotCom, 1), nil)

	res, err := newOrchestrator(t, al, cc).Scrape(context.Background(), "compass", config.ModelConfig{}, config.LocationConfig{})
	require.NoError(t, err)

	assert.Equal(t, 5, res.Diagnostics.Total)
	assert.Equal(t, 4, res.Diagnostics.SourceCounts[model.SourceAutolist])
	assert.Equal(t, model.SourceDegraded, res.Diagnostics.SourceStatus[model.SourceAutolist])
	assert.Equal(t, model.SourceOK, res.Diagnostics.SourceStatus[model.SourceCarsDotCom])
}

func TestScrape_FailedSourceKeepsPartial(t *testing.T) {
	at := &mockSearcher{src: model.SourceAutoTrader}
	al := &mockSearcher{src: model.SourceAutolist}
	at.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("http 403"))
	al.On("Search", mock.Anything, mock.Anything).Return(listings(model.SourceAutolist, 2), errors.New("page 3 timeout"))

	res, err := newOrchestrator(t, at, al).Scrape(context.Background(), "compass", config.ModelConfig{}, config.LocationConfig{})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Diagnostics.Total)
	assert.Equal(t, 0, res.Diagnostics.SourceCounts[model.SourceAutoTrader])
	assert.Equal(t, model.SourceFailed, res.Diagnostics.SourceStatus[model.SourceAutoTrader])
	assert.Equal(t, model.SourceFailed, res.Diagnostics.SourceStatus[model.SourceAutolist])
}

func TestScrape_MissingParamsIsFatal(t *testing.T) {
	at := &mockSearcher{src: model.SourceAutoTrader}
	al := &mockSearcher{src: model.SourceAutolist}
	at.On("Search", mock.Anything, mock.Anything).Return(nil, eris.Wrap(source.ErrMissingParams, "auto_trader"))

	_, err := newOrchestrator(t, at, al).Scrape(context.Background(), "compass", config.ModelConfig{}, config.LocationConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrMissingParams))
	al.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestScrape_UnregisteredSource(t *testing.T) {
	o := New(source.NewRegistry(), Options{Sources: []model.Source{model.SourceCarGurus}})
	_, err := o.Scrape(context.Background(), "compass", config.ModelConfig{}, config.LocationConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrUnknownSource))
}
