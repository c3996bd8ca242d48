package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-dashboard/internal/models"
)

func TestClient_LoginKeepsToken(t *testing.T) {
	var seenAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			var req models.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "demo@example.com", req.Email)
			json.NewEncoder(w).Encode(models.LoginResponse{
				Token: "tok-123",
				User:  models.User{ID: "1", Email: req.Email, Name: "Demo User"},
			})
		case "/api/vehicles":
			seenAuth = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode([]models.Vehicle{{ID: "1", Title: "BMW 5 Series"}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := New(server.URL + "/api/")
	resp, err := c.Login(context.Background(), "demo@example.com", "demo123")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", resp.Token)
	assert.Equal(t, "tok-123", c.Token())

	vehicles, err := c.ListVehicles(context.Background())
	require.NoError(t, err)
	require.Len(t, vehicles, 1)
	assert.Equal(t, "Bearer tok-123", seenAuth)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    error
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Unauthorized"}`, models.ErrUnauthorized, "Unauthorized"},
		{"not found", http.StatusNotFound, `{"error":"Vehicle not found"}`, models.ErrNotFound, "Vehicle not found"},
		{"server error", http.StatusInternalServerError, `{"error":"Failed to fetch vehicle"}`, models.ErrUpstream, "Failed to fetch vehicle"},
		{"bad request", http.StatusBadRequest, `{"message":"bad input"}`, models.ErrUpstream, "bad input"},
		{"no body", http.StatusBadGateway, ``, models.ErrUpstream, "API request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(server.URL).GetVehicle(context.Background(), "7")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestClient_NetworkFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	_, err := New(base).Stats(context.Background())
	assert.ErrorIs(t, err, models.ErrUpstream)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_InvalidBodyIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>"))
	}))
	defer server.Close()

	_, err := New(server.URL).Stats(context.Background())
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestClient_VehicleCalls(t *testing.T) {
	type call struct {
		method string
		path   string
		body   map[string]interface{}
	}
	var calls []call

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})

		switch {
		case r.URL.Path == "/vehicles/share":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{"token": "abc", "vehicleId": "3", "url": "/shared/abc"})
		case r.URL.Path == "/vehicles/stats":
			json.NewEncoder(w).Encode(models.FleetStats{TotalVehicles: 3, EngineRunning: 2, AverageFuelLevel: 68})
		case r.Method == http.MethodDelete:
			json.NewEncoder(w).Encode(map[string]bool{"success": true})
		default:
			json.NewEncoder(w).Encode(models.Vehicle{ID: "3", VIN: "5TDJKRFH8LS123456", FuelLevel: 10})
		}
	}))
	defer server.Close()

	ctx := context.Background()
	c := New(server.URL, WithToken("t"), WithHTTPClient(&http.Client{Timeout: time.Second}))

	fuel := 10
	v, err := c.UpdateVehicle(ctx, "3", models.VehiclePatch{FuelLevel: &fuel})
	require.NoError(t, err)
	assert.Equal(t, 10, v.FuelLevel)

	_, err = c.GetVehicleByVIN(ctx, "5TDJKRFH8LS123456")
	require.NoError(t, err)

	_, err = c.CreateVehicle(ctx, models.VehicleInput{Title: "New"})
	require.NoError(t, err)

	require.NoError(t, c.DeleteVehicle(ctx, "3"))

	link, err := c.ShareVehicle(ctx, "3")
	require.NoError(t, err)
	assert.Equal(t, "abc", link.Token)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 68, stats.AverageFuelLevel)

	require.Len(t, calls, 6)
	assert.Equal(t, call{"PUT", "/vehicles/3", map[string]interface{}{"fuelLevel": float64(10)}}, calls[0])
	assert.Equal(t, "/vehicles/vin/5TDJKRFH8LS123456", calls[1].path)
	assert.Equal(t, "POST", calls[2].method)
	assert.Equal(t, call{"DELETE", "/vehicles/3", nil}, calls[3])
	assert.Equal(t, "3", calls[4].body["vehicleId"])
}

func TestClient_LogoutClearsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := New(server.URL, WithToken("t"))
	require.NoError(t, c.Logout(context.Background()))
	assert.Empty(t, c.Token())
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("NEXT_PUBLIC_API_URL", "")
	assert.Equal(t, DefaultBaseURL, NewFromEnv().baseURL)

	t.Setenv("NEXT_PUBLIC_API_URL", "https://fleet.example.com/api/")
	assert.Equal(t, "https://fleet.example.com/api", NewFromEnv().baseURL)
}
