package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/models"
	"github.com/ukydev/fleet-dashboard/internal/share"
)

// MockVehicleRepository is a mock implementation of db.VehicleRepository
type MockVehicleRepository struct {
	mock.Mock
}

func (m *MockVehicleRepository) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) FindVehicleByVIN(ctx context.Context, vin string) (*models.Vehicle, error) {
	args := m.Called(ctx, vin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) CreateVehicle(ctx context.Context, input models.VehicleInput) (*models.Vehicle, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) UpdateVehicle(ctx context.Context, id string, patch models.VehiclePatch) (*models.Vehicle, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleRepository) DeleteVehicle(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func withURLParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func testVehicles() []models.Vehicle {
	return db.SeedVehicles(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
}

func newVehicleHandler(repo db.VehicleRepository) (*VehicleHandler, *share.Store) {
	links := share.NewStore(time.Hour, "http://localhost:8080")
	return NewVehicleHandler(repo, links), links
}

func TestVehicleHandler_List(t *testing.T) {
	t.Run("returns vehicles", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)
		repo.On("ListVehicles", mock.Anything).Return(testVehicles(), nil)

		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest("GET", "/api/vehicles", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		var vehicles []models.Vehicle
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vehicles))
		require.Len(t, vehicles, 3)
		assert.Equal(t, "BMW 5 Series", vehicles[0].Title)
	})

	t.Run("empty store is an empty array", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)
		repo.On("ListVehicles", mock.Anything).Return(nil, nil)

		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest("GET", "/api/vehicles", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("store failure", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)
		repo.On("ListVehicles", mock.Anything).Return(nil, errors.New("boom"))

		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest("GET", "/api/vehicles", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to fetch vehicles", decodeError(t, w))
	})
}

func TestVehicleHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)
		input := models.VehicleInput{VIN: "1HGCM82633A004352", Title: "Accord", FuelLevel: 60, Location: "40.0,-75.0"}
		created := input.ToVehicle("4")
		repo.On("CreateVehicle", mock.Anything, mock.MatchedBy(func(in models.VehicleInput) bool {
			return in.VIN == input.VIN && in.Title == input.Title && in.FuelLevel == 60
		})).Return(&created, nil)

		w := httptest.NewRecorder()
		handler.Create(w, jsonRequest(t, "POST", "/api/vehicles", input))

		assert.Equal(t, http.StatusCreated, w.Code)
		var v models.Vehicle
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
		assert.Equal(t, "4", v.ID)
		assert.Equal(t, "Accord", v.Title)
		repo.AssertExpectations(t)
	})

	t.Run("invalid json", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)

		w := httptest.NewRecorder()
		handler.Create(w, httptest.NewRequest("POST", "/api/vehicles", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		repo.AssertNotCalled(t, "CreateVehicle", mock.Anything, mock.Anything)
	})
}

func TestVehicleHandler_Get(t *testing.T) {
	repo := new(MockVehicleRepository)
	handler, _ := newVehicleHandler(repo)
	v := testVehicles()[1]
	repo.On("FindVehicleByID", mock.Anything, "2").Return(&v, nil)
	repo.On("FindVehicleByID", mock.Anything, "99").Return(nil, db.ErrVehicleNotFound)
	repo.On("FindVehicleByVIN", mock.Anything, v.VIN).Return(&v, nil)

	t.Run("by id", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Get(w, withURLParams(httptest.NewRequest("GET", "/api/vehicles/2", nil), "id", "2"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"title":"Honda Civic"`)
	})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Get(w, withURLParams(httptest.NewRequest("GET", "/api/vehicles/99", nil), "id", "99"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Vehicle not found"}`, w.Body.String())
	})

	t.Run("by vin", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.GetByVIN(w, withURLParams(httptest.NewRequest("GET", "/api/vehicles/vin/"+v.VIN, nil), "vin", v.VIN))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"2"`)
	})
}

func TestVehicleHandler_Update(t *testing.T) {
	t.Run("partial update", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)
		updated := testVehicles()[0]
		updated.FuelLevel = 10
		repo.On("UpdateVehicle", mock.Anything, "1", mock.MatchedBy(func(p models.VehiclePatch) bool {
			return p.FuelLevel != nil && *p.FuelLevel == 10 && p.Title == nil && p.EngineStatus == nil
		})).Return(&updated, nil)

		req := jsonRequest(t, "PUT", "/api/vehicles/1", map[string]interface{}{"fuelLevel": 10, "id": "ignored"})
		w := httptest.NewRecorder()
		handler.Update(w, withURLParams(req, "id", "1"))

		assert.Equal(t, http.StatusOK, w.Code)
		var v models.Vehicle
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
		assert.Equal(t, "1", v.ID)
		assert.Equal(t, 10, v.FuelLevel)
		repo.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockVehicleRepository)
		handler, _ := newVehicleHandler(repo)
		repo.On("UpdateVehicle", mock.Anything, "99", mock.Anything).Return(nil, db.ErrVehicleNotFound)

		req := jsonRequest(t, "PUT", "/api/vehicles/99", map[string]interface{}{"fuelLevel": 10})
		w := httptest.NewRecorder()
		handler.Update(w, withURLParams(req, "id", "99"))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestVehicleHandler_Delete(t *testing.T) {
	repo := new(MockVehicleRepository)
	handler, links := newVehicleHandler(repo)
	repo.On("DeleteVehicle", mock.Anything, "2").Return(true, nil).Once()
	repo.On("DeleteVehicle", mock.Anything, "2").Return(false, nil).Once()

	link := links.Create("2")

	w := httptest.NewRecorder()
	handler.Delete(w, withURLParams(httptest.NewRequest("DELETE", "/api/vehicles/2", nil), "id", "2"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	_, err := links.Resolve(link.Token)
	assert.ErrorIs(t, err, share.ErrLinkNotFound)

	w = httptest.NewRecorder()
	handler.Delete(w, withURLParams(httptest.NewRequest("DELETE", "/api/vehicles/2", nil), "id", "2"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	repo.AssertExpectations(t)
}

func TestVehicleHandler_Stats(t *testing.T) {
	repo := new(MockVehicleRepository)
	handler, _ := newVehicleHandler(repo)
	repo.On("ListVehicles", mock.Anything).Return(testVehicles(), nil)

	w := httptest.NewRecorder()
	handler.Stats(w, httptest.NewRequest("GET", "/api/vehicles/stats", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var stats models.FleetStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.TotalVehicles)
	assert.Equal(t, 2, stats.EngineRunning)
	assert.Equal(t, 68, stats.AverageFuelLevel)
}

func TestVehicleHandler_ShareAndShared(t *testing.T) {
	repo := new(MockVehicleRepository)
	handler, _ := newVehicleHandler(repo)
	v := testVehicles()[2]
	repo.On("FindVehicleByID", mock.Anything, "3").Return(&v, nil)
	repo.On("FindVehicleByID", mock.Anything, "99").Return(nil, db.ErrVehicleNotFound)

	w := httptest.NewRecorder()
	handler.Share(w, jsonRequest(t, "POST", "/api/vehicles/share", map[string]string{"vehicleId": "3"}))
	require.Equal(t, http.StatusCreated, w.Code)

	var link share.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Equal(t, "3", link.VehicleID)
	assert.Equal(t, "http://localhost:8080/shared/"+link.Token, link.URL)

	w = httptest.NewRecorder()
	handler.Shared(w, withURLParams(httptest.NewRequest("GET", "/api/shared/"+link.Token, nil), "token", link.Token))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Toyota Highlander"`)

	t.Run("unknown vehicle", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Share(w, jsonRequest(t, "POST", "/api/vehicles/share", map[string]string{"vehicleId": "99"}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing vehicle id", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Share(w, jsonRequest(t, "POST", "/api/vehicles/share", map[string]string{}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Shared(w, withURLParams(httptest.NewRequest("GET", "/api/shared/nope", nil), "token", "nope"))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Share link not found", decodeError(t, w))
	})

	t.Run("expired token", func(t *testing.T) {
		links := share.NewStore(time.Nanosecond, "")
		expiring := NewVehicleHandler(repo, links)
		l := links.Create("3")
		time.Sleep(time.Millisecond)

		w := httptest.NewRecorder()
		expiring.Shared(w, withURLParams(httptest.NewRequest("GET", "/api/shared/"+l.Token, nil), "token", l.Token))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Share link expired", decodeError(t, w))
	})
}
