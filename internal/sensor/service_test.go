package sensor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/agrisense/internal/model"
)

// --- モック定義 ---

type mockReadingRepo struct {
	createFn     func(ctx context.Context, r *model.SensorReading) error
	findLatestFn func(ctx context.Context, farmID string) (*model.SensorReading, error)
	listFn       func(ctx context.Context, farmID string, from, to time.Time) ([]*model.SensorReading, error)
}

func (m *mockReadingRepo) Create(ctx context.Context, r *model.SensorReading) error {
	return m.createFn(ctx, r)
}

func (m *mockReadingRepo) FindLatestByFarm(ctx context.Context, farmID string) (*model.SensorReading, error) {
	return m.findLatestFn(ctx, farmID)
}

func (m *mockReadingRepo) ListByFarmBetween(ctx context.Context, farmID string, from, to time.Time) ([]*model.SensorReading, error) {
	return m.listFn(ctx, farmID, from, to)
}

type mockFarms struct {
	known map[string]bool
}

func (m *mockFarms) Get(ctx context.Context, id string) (*model.Farm, error) {
	if m.known[id] {
		return &model.Farm{ID: id}, nil
	}
	return nil, model.NewFarmNotFoundError(id)
}

type countingRecorder struct{ n int }

func (c *countingRecorder) RecordSensorReadingIngested(string) { c.n++ }

const farmID = "7b1f9a4e-3f6c-4c1e-9b0e-0d2f6f7b9c11"

var fixedNow = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo *mockReadingRepo, rec IngestRecorder) *Service {
	s := NewService(repo, &mockFarms{known: map[string]bool{farmID: true}}, rec)
	s.now = func() time.Time { return fixedNow }
	return s
}

func apiErrorCode(t *testing.T, err error) string {
	t.Helper()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	return apiErr.Code
}

// --- テスト ---

func TestRecord_DefaultsTimestamp(t *testing.T) {
	rec := &countingRecorder{}
	var saved *model.SensorReading
	s := newTestService(&mockReadingRepo{
		createFn: func(ctx context.Context, r *model.SensorReading) error {
			saved = r
			r.ID = 10
			return nil
		},
	}, rec)

	got, err := s.Record(context.Background(), &model.SensorReading{
		FarmID: farmID, SoilMoisture: 0.31, Temperature: 22.4, Humidity: 61,
	})
	require.NoError(t, err)
	assert.Same(t, saved, got)
	assert.Equal(t, int64(10), got.ID)
	assert.True(t, got.Timestamp.Equal(fixedNow))
	assert.Equal(t, 1, rec.n)
}

func TestRecord_KeepsExplicitTimestampInUTC(t *testing.T) {
	s := newTestService(&mockReadingRepo{
		createFn: func(ctx context.Context, r *model.SensorReading) error { return nil },
	}, nil)

	nairobi := time.FixedZone("EAT", 3*3600)
	ts := time.Date(2025, 3, 31, 9, 0, 0, 0, nairobi)

	got, err := s.Record(context.Background(), &model.SensorReading{FarmID: farmID, Timestamp: ts})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Timestamp.Location())
	assert.True(t, got.Timestamp.Equal(ts))
}

func TestRecord_Validation(t *testing.T) {
	s := newTestService(&mockReadingRepo{
		createFn: func(ctx context.Context, r *model.SensorReading) error {
			t.Fatal("repository should not be called")
			return nil
		},
	}, nil)

	tests := []struct {
		name    string
		reading model.SensorReading
		code    string
	}{
		{"missing farm", model.SensorReading{}, model.ErrCodeValidation},
		{"humidity above 100", model.SensorReading{FarmID: farmID, Humidity: 101}, model.ErrCodeValidation},
		{"negative moisture", model.SensorReading{FarmID: farmID, SoilMoisture: -0.1}, model.ErrCodeValidation},
		{"unknown farm", model.SensorReading{FarmID: "0e4c8a52-2b8e-4d0c-8a2e-5e7b2a1c9d33"}, model.ErrCodeFarmNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.reading
			_, err := s.Record(context.Background(), &r)
			assert.Equal(t, tt.code, apiErrorCode(t, err))
		})
	}
}

func TestLatest(t *testing.T) {
	latest := &model.SensorReading{ID: 3, FarmID: farmID}
	s := newTestService(&mockReadingRepo{
		findLatestFn: func(ctx context.Context, id string) (*model.SensorReading, error) { return latest, nil },
	}, nil)

	got, err := s.Latest(context.Background(), farmID)
	require.NoError(t, err)
	assert.Same(t, latest, got)
}

func TestLatest_NoData(t *testing.T) {
	s := newTestService(&mockReadingRepo{
		findLatestFn: func(ctx context.Context, id string) (*model.SensorReading, error) { return nil, nil },
	}, nil)

	_, err := s.Latest(context.Background(), farmID)
	assert.Equal(t, model.ErrCodeSensorDataNotFound, apiErrorCode(t, err))
}

func TestHistory_DefaultWindow(t *testing.T) {
	var gotFrom, gotTo time.Time
	s := newTestService(&mockReadingRepo{
		listFn: func(ctx context.Context, id string, from, to time.Time) ([]*model.SensorReading, error) {
			gotFrom, gotTo = from, to
			return nil, nil
		},
	}, nil)

	_, err := s.History(context.Background(), farmID, nil, nil)
	require.NoError(t, err)
	assert.True(t, gotTo.Equal(fixedNow))
	assert.True(t, gotFrom.Equal(fixedNow.Add(-24*time.Hour)))
}

func TestHistory_FromDefaultsRelativeToTo(t *testing.T) {
	var gotFrom time.Time
	s := newTestService(&mockReadingRepo{
		listFn: func(ctx context.Context, id string, from, to time.Time) ([]*model.SensorReading, error) {
			gotFrom = from
			return nil, nil
		},
	}, nil)

	to := fixedNow.Add(-48 * time.Hour)
	_, err := s.History(context.Background(), farmID, nil, &to)
	require.NoError(t, err)
	assert.True(t, gotFrom.Equal(to.Add(-24*time.Hour)))
}

func TestHistory_InvertedRange(t *testing.T) {
	s := newTestService(&mockReadingRepo{}, nil)

	from := fixedNow
	to := fixedNow.Add(-time.Hour)
	_, err := s.History(context.Background(), farmID, &from, &to)
	assert.Equal(t, model.ErrCodeInvalidTimeRange, apiErrorCode(t, err))
}

func TestHistory_EqualBoundsAllowed(t *testing.T) {
	s := newTestService(&mockReadingRepo{
		listFn: func(ctx context.Context, id string, from, to time.Time) ([]*model.SensorReading, error) {
			return []*model.SensorReading{{ID: 1}}, nil
		},
	}, nil)

	at := fixedNow
	got, err := s.History(context.Background(), farmID, &at, &at)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
