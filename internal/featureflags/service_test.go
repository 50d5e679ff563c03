package featureflags_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/featureflags"
)

func newService(repo featureflags.Repository, ttl time.Duration) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
		CacheTTL:   ttl,
	})
}

func TestService_Defaults(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	if !service.DiscardStaleResponses(ctx) {
		t.Error("expected stale responses to be discarded by default")
	}
	if service.ExplicitMediaFalse(ctx) {
		t.Error("expected explicit media false to be off by default")
	}
	if !service.RefreshOnIncidentChange(ctx) {
		t.Error("expected refresh on incident change to be on by default")
	}
	if !service.GeoJSONExportEnabled(ctx) {
		t.Error("expected geojson export to be on by default")
	}
}

func TestService_NilServiceUsesDefaults(t *testing.T) {
	var service *featureflags.Service
	ctx := context.Background()

	if !service.DiscardStaleResponses(ctx) {
		t.Error("expected default true from nil service")
	}
	if service.ExplicitMediaFalse(ctx) {
		t.Error("expected default false from nil service")
	}
}

func TestService_SetFlag(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	ctx := context.Background()

	err := service.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDiscardStaleResponses, Value: false})
	if err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if service.DiscardStaleResponses(ctx) {
		t.Error("expected stale discard to be off after update")
	}
}

func TestService_SetFlagUnknown(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)

	err := service.SetFlag(context.Background(), &featureflags.Flag{Key: "map_heatmap_enabled", Value: true})
	if !errors.Is(err, featureflags.ErrUnknownFlag) {
		t.Fatalf("expected ErrUnknownFlag, got %v", err)
	}
}

func TestService_SetFlags(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	service := newService(repo, time.Minute)
	ctx := context.Background()

	err := service.SetFlags(ctx, []*featureflags.Flag{
		{Key: featureflags.FlagExplicitMediaFalse, Value: true},
		{Key: featureflags.FlagGeoJSONExport, Value: false},
	})
	if err != nil {
		t.Fatalf("failed to set flags: %v", err)
	}
	if !service.ExplicitMediaFalse(ctx) {
		t.Error("expected explicit media false to be on")
	}
	if service.GeoJSONExportEnabled(ctx) {
		t.Error("expected geojson export to be off")
	}

	err = service.SetFlags(ctx, []*featureflags.Flag{
		{Key: featureflags.FlagGeoJSONExport, Value: true},
		{Key: "nope", Value: true},
	})
	if !errors.Is(err, featureflags.ErrUnknownFlag) {
		t.Fatalf("expected ErrUnknownFlag, got %v", err)
	}
	stored, _ := repo.GetFlag(ctx, featureflags.FlagGeoJSONExport)
	if stored.BoolValue(true) {
		t.Error("expected no flag written when the batch has an unknown key")
	}
}

func TestService_GetAllFlags(t *testing.T) {
	service := newService(featureflags.NewInMemoryRepository(), time.Minute)
	flags := service.GetAllFlags(context.Background())

	for key := range featureflags.DefaultFlags() {
		if _, ok := flags[key]; !ok {
			t.Errorf("expected flag %q to be present", key)
		}
	}
}

func TestService_InvalidateCache(t *testing.T) {
	repo := featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagExplicitMediaFalse: {Key: featureflags.FlagExplicitMediaFalse, Value: false},
	})
	service := newService(repo, time.Hour)
	ctx := context.Background()

	_ = service.GetFlag(ctx, featureflags.FlagExplicitMediaFalse)

	_ = repo.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagExplicitMediaFalse, Value: true})
	if service.ExplicitMediaFalse(ctx) {
		t.Error("expected cached value before invalidation")
	}

	service.InvalidateCache()
	if !service.ExplicitMediaFalse(ctx) {
		t.Error("expected updated value after cache invalidation")
	}
}

type failingRepository struct {
	featureflags.InMemoryRepository
}

func (*failingRepository) GetFlag(context.Context, string) (*featureflags.Flag, error) {
	return nil, errors.New("db down")
}

func (*failingRepository) GetAllFlags(context.Context) (map[string]*featureflags.Flag, error) {
	return nil, errors.New("db down")
}

func TestService_RepositoryErrorFallsBackToDefaults(t *testing.T) {
	service := newService(&failingRepository{}, time.Minute)
	ctx := context.Background()

	if !service.DiscardStaleResponses(ctx) {
		t.Error("expected default on repository error")
	}
	if len(service.GetAllFlags(ctx)) != len(featureflags.DefaultFlags()) {
		t.Error("expected defaults on repository error")
	}
}

type flakyRepository struct {
	*featureflags.InMemoryRepository
	down bool
}

func (r *flakyRepository) GetAllFlags(ctx context.Context) (map[string]*featureflags.Flag, error) {
	if r.down {
		return nil, errors.New("db down")
	}
	return r.InMemoryRepository.GetAllFlags(ctx)
}

func TestService_ReloadErrorKeepsPreviousValues(t *testing.T) {
	repo := &flakyRepository{InMemoryRepository: featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagGeoJSONExport: {Key: featureflags.FlagGeoJSONExport, Value: false},
	})}
	service := newService(repo, time.Nanosecond)
	ctx := context.Background()

	if service.GeoJSONExportEnabled(ctx) {
		t.Fatal("expected stored value to be loaded")
	}

	repo.down = true
	time.Sleep(time.Millisecond)
	if service.GeoJSONExportEnabled(ctx) {
		t.Error("expected previous value to be kept while the repository fails")
	}
}

func TestFlag_BoolValue(t *testing.T) {
	tests := []struct {
		name string
		flag *featureflags.Flag
		def  bool
		want bool
	}{
		{"nil", nil, true, true},
		{"bool", &featureflags.Flag{Value: true}, false, true},
		{"number", &featureflags.Flag{Value: float64(0)}, true, false},
		{"string on", &featureflags.Flag{Value: "on"}, false, true},
		{"garbage", &featureflags.Flag{Value: "maybe"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.flag.BoolValue(tt.def); got != tt.want {
				t.Errorf("BoolValue(%v) = %v, want %v", tt.def, got, tt.want)
			}
		})
	}
}

func TestInMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := featureflags.NewInMemoryRepository()
	ctx := context.Background()

	_ = repo.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagGeoJSONExport, Value: true})
	got, _ := repo.GetFlag(ctx, featureflags.FlagGeoJSONExport)
	got.Value = false

	again, _ := repo.GetFlag(ctx, featureflags.FlagGeoJSONExport)
	if !again.BoolValue(false) {
		t.Error("expected stored flag to be unaffected by caller mutation")
	}
	if err := repo.DeleteFlag(ctx, "missing"); !errors.Is(err, featureflags.ErrFlagNotFound) {
		t.Errorf("expected ErrFlagNotFound, got %v", err)
	}
}
