package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/vehicle-scraper/internal/augment"
	"github.com/sells-group/vehicle-scraper/internal/config"
	"github.com/sells-group/vehicle-scraper/internal/governor"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/normalize"
	"github.com/sells-group/vehicle-scraper/internal/scrape"
	"github.com/sells-group/vehicle-scraper/internal/source"
	"github.com/sells-group/vehicle-scraper/internal/store"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) InsertVehicle(ctx context.Context, v model.Vehicle) error {
	return m.Called(ctx, v).Error(0)
}

func (m *mockStore) InsertListing(ctx context.Context, l model.Listing) error {
	return m.Called(ctx, l).Error(0)
}

func (m *mockStore) UpdateVehicle(ctx context.Context, vin string, u model.VehicleUpdate) error {
	return m.Called(ctx, vin, u).Error(0)
}

func (m *mockStore) ActiveVehicles(ctx context.Context, f store.VehicleFilter) ([]model.VehicleRef, error) {
	args := m.Called(ctx, f)
	refs, _ := args.Get(0).([]model.VehicleRef)
	return refs, args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// fakeSource answers searches from a per-model table and details from a
// per-vin table.
type fakeSource struct {
	src      model.Source
	listings map[string][]model.Listing
	searchEr error
	details  map[string]*model.VehicleUpdate
	detailEr error
}

func (f *fakeSource) Source() model.Source { return f.src }

func (f *fakeSource) Search(_ context.Context, q source.Query) ([]model.Listing, error) {
	out := make([]model.Listing, 0, len(f.listings[q.ModelKey]))
	for _, l := range f.listings[q.ModelKey] {
		l.Source = f.src
		l.ScrapedAt = q.ScrapedAt
		out = append(out, l)
	}
	return out, f.searchEr
}

func (f *fakeSource) Detail(_ context.Context, v model.VehicleRef) (*model.VehicleUpdate, error) {
	if f.detailEr != nil {
		return nil, f.detailEr
	}
	upd, ok := f.details[v.VIN]
	if !ok {
		return nil, errors.New("http 404")
	}
	return upd, nil
}

func newCoordinator(st store.Store, sources ...*fakeSource) *Coordinator {
	reg := source.NewRegistry()
	var enabled []model.Source
	for _, s := range sources {
		reg.Register(s)
		enabled = append(enabled, s.src)
	}
	orch := scrape.New(reg, scrape.Options{Sources: enabled, MaxCalls: 5})
	return New(orch, augment.NewResolver(reg, nil), st, Options{
		RowConcurrency: 4,
		Augment:        governor.Options{Width: 2, Checkpoint: 2, Cooldown: time.Millisecond},
	})
}

var models = map[string]config.ModelConfig{
	"wrangler": {Make: "jeep", Model: "wrangler"},
	"compass":  {Make: "jeep", Model: "compass"},
}

func TestRunCollection(t *testing.T) {
	st := &mockStore{}
	autolist := &fakeSource{src: model.SourceAutolist, listings: map[string][]model.Listing{
		"compass":  {{VIN: "C1", Year: 2017}, {VIN: "C2", Year: 2018}},
		"wrangler": {{VIN: "W1", Year: 2016}},
	}}
	cars := &fakeSource{src: model.SourceCarsDotCom, listings: map[string][]model.Listing{
		"compass": {{VIN: "C1", Year: 2017}},
	}}

	st.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v model.Vehicle) bool { return v.VIN == "C1" })).
		Return(nil).Once()
	st.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v model.Vehicle) bool { return v.VIN == "C1" })).
		Return(eris.Wrap(store.ErrDuplicate, "vehicle C1"))
	st.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v model.Vehicle) bool {
		return v.VIN == "C2" && v.Make == "jeep" && v.Model == "compass"
	})).Return(nil)
	st.On("InsertVehicle", mock.Anything, mock.MatchedBy(func(v model.Vehicle) bool { return v.Model == "wrangler" })).
		Return(nil)
	st.On("InsertListing", mock.Anything, mock.Anything).Return(nil)

	diags, err := newCoordinator(st, autolist, cars).RunCollection(context.Background(), models, config.LocationConfig{})
	require.NoError(t, err)
	require.Contains(t, diags, "compass")
	require.Contains(t, diags, "wrangler")

	compass := diags["compass"]
	assert.Equal(t, 3, compass.Scrape.Total)
	assert.Equal(t, 2, compass.Scrape.SourceCounts[model.SourceAutolist])
	assert.Equal(t, 1, compass.Scrape.SourceCounts[model.SourceCarsDotCom])
	assert.Equal(t, int64(2), compass.Insert.InsertCounts.Vehicles)
	assert.Equal(t, int64(1), compass.Insert.DupeCounts.Vehicles)
	assert.Equal(t, int64(3), compass.Insert.InsertCounts.Listings)

	wrangler := diags["wrangler"]
	assert.Equal(t, 1, wrangler.Scrape.Total)
	assert.Equal(t, int64(1), wrangler.Insert.InsertCounts.Listings)
	st.AssertNumberOfCalls(t, "InsertListing", 4)
}

func TestRunCollection_PartialSourceStillPersisted(t *testing.T) {
	st := &mockStore{}
	autolist := &fakeSource{
		src:      model.SourceAutolist,
		listings: map[string][]model.Listing{"compass": {{VIN: "C1"}, {VIN: "C2"}}},
		searchEr: eris.Wrap(source.ErrCallCeiling, "autolist stopped"),
	}
	st.On("InsertVehicle", mock.Anything, mock.Anything).Return(nil)
	st.On("InsertListing", mock.Anything, mock.Anything).Return(nil)

	diags, err := newCoordinator(st, autolist).RunCollection(context.Background(),
		map[string]config.ModelConfig{"compass": models["compass"]}, config.LocationConfig{})
	require.NoError(t, err)

	d := diags["compass"]
	assert.Equal(t, 2, d.Scrape.Total)
	assert.Equal(t, model.SourceDegraded, d.Scrape.SourceStatus[model.SourceAutolist])
	assert.Equal(t, int64(2), d.Insert.InsertCounts.Listings)
}

func TestRunCollection_ConfigErrorStopsRun(t *testing.T) {
	st := &mockStore{}
	autolist := &fakeSource{src: model.SourceAutolist, searchEr: eris.Wrap(source.ErrMissingParams, "autolist")}

	diags, err := newCoordinator(st, autolist).RunCollection(context.Background(), models, config.LocationConfig{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrMissingParams))
	assert.Empty(t, diags)
	st.AssertNotCalled(t, "InsertVehicle", mock.Anything, mock.Anything)
}

func TestRunAugmentation(t *testing.T) {
	st := &mockStore{}
	autolist := &fakeSource{src: model.SourceAutolist, details: map[string]*model.VehicleUpdate{
		"V1": {Model: "compass", Year: 2017},
	}}
	edmunds := &fakeSource{src: model.SourceEdmunds, details: map[string]*model.VehicleUpdate{
		"V2": {Model: "grand_cherokee", Year: 2019},
		"V3": {Model: "grand_cherokee", Year: 2020},
	}}
	st.On("UpdateVehicle", mock.Anything, "V1", mock.Anything).Return(nil)
	st.On("UpdateVehicle", mock.Anything, "V2", mock.Anything).Return(nil)
	st.On("UpdateVehicle", mock.Anything, "V3", mock.Anything).Return(eris.Wrap(store.ErrVehicleNotFound, "V3"))

	vehicles := []model.VehicleRef{
		{VIN: "V1", ActiveSources: []model.Source{model.SourceAutolist, model.SourceEdmunds}},
		{VIN: "V2", ActiveSources: []model.Source{model.SourceEdmunds}},
		{VIN: "V3", ActiveSources: []model.Source{model.SourceEdmunds}},
		{VIN: "V4", ActiveSources: []model.Source{"unknown_source"}},
	}

	diag, err := newCoordinator(st, autolist, edmunds).RunAugmentation(context.Background(), vehicles)
	require.NoError(t, err)
	assert.Equal(t, 4, diag.Total)
	assert.Equal(t, int64(2), diag.Augmented)
	assert.Equal(t, int64(2), diag.Skipped)
	assert.Equal(t, int64(2), diag.Pauses)
	assert.Equal(t, 1, diag.SourceCounts[model.SourceAutolist])
	assert.Equal(t, 1, diag.SourceCounts[model.SourceEdmunds])
	st.AssertNumberOfCalls(t, "UpdateVehicle", 3)
}

func TestRunAugmentation_UnmappedModelFailsRun(t *testing.T) {
	_, unmapped := normalize.ModelName(model.SourceAutolist, "gladiator")
	require.Error(t, unmapped)

	st := &mockStore{}
	autolist := &fakeSource{src: model.SourceAutolist, detailEr: unmapped}
	vehicles := []model.VehicleRef{
		{VIN: "V1", ActiveSources: []model.Source{model.SourceAutolist}},
		{VIN: "V2", ActiveSources: []model.Source{model.SourceAutolist}},
	}

	diag, err := newCoordinator(st, autolist).RunAugmentation(context.Background(), vehicles)
	require.Error(t, err)
	assert.True(t, errors.Is(err, normalize.ErrUnmappedModel))
	assert.Equal(t, int64(0), diag.Augmented)
	assert.Equal(t, int64(0), diag.Skipped)
	st.AssertNotCalled(t, "UpdateVehicle", mock.Anything, mock.Anything, mock.Anything)
}
