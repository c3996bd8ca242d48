package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/apiclient"
	"github.com/ukydev/fleet-dashboard/internal/models"
	"github.com/ukydev/fleet-dashboard/internal/telemetry"
)

// Cities for realistic routes
var cities = []models.Location{
	{Lat: 41.8781, Lon: -87.6298},  // Chicago
	{Lat: 40.7128, Lon: -74.0060},  // New York
	{Lat: 34.0522, Lon: -118.2437}, // Los Angeles
	{Lat: 37.7749, Lon: -122.4194}, // San Francisco
	{Lat: 29.7604, Lon: -95.3698},  // Houston
	{Lat: 33.4484, Lon: -112.0740}, // Phoenix
	{Lat: 39.7392, Lon: -104.9903}, // Denver
	{Lat: 47.6062, Lon: -122.3321}, // Seattle
	{Lat: 42.3601, Lon: -71.0589},  // Boston
	{Lat: 25.7617, Lon: -80.1918},  // Miami
	{Lat: 43.6532, Lon: -79.3832},  // Toronto
	{Lat: 51.5074, Lon: -0.1278},   // London
	{Lat: 48.8566, Lon: 2.3522},    // Paris
	{Lat: 52.5200, Lon: 13.4050},   // Berlin
}

var vehicleTitles = []string{
	"Ford F-150", "Chevrolet Silverado", "Toyota Camry", "Honda Accord",
	"BMW X5", "Tesla Model 3", "Nissan Leaf", "Audi Q5",
}

func jitterLocation(base models.Location, meters float64) models.Location {
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (rand.Float64()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}

func randomLocation() models.Location {
	return jitterLocation(cities[rand.Intn(len(cities))], 500)
}

func randomVIN() string {
	const alphabet = "ABCDEFGHJKLMNPRSTUVWXYZ0123456789" // no I, O, Q
	b := make([]byte, 17)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}

// --- Routing & movement ---

type vehicleRoute struct {
	Points    []models.Location
	SegIndex  int
	SegOffset float64 // km along current segment
}

type vehicleState struct {
	VehicleID string
	Position  models.Location
	SpeedKmh  float64
	FuelPct   float64
	Engine    bool
	Route     *vehicleRoute
}

func haversineKm(a, b models.Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

func lerp(a, b models.Location, t float64) models.Location {
	return models.Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lon: a.Lon + (b.Lon-a.Lon)*t}
}

// planRoute builds a local delivery loop of jittered waypoints around the
// vehicle's current position.
func planRoute(s *vehicleState) {
	pts := []models.Location{s.Position}
	for i := 0; i < 4; i++ {
		pts = append(pts, jitterLocation(s.Position, 5000))
	}
	pts = append(pts, s.Position)
	s.Route = &vehicleRoute{Points: pts}
}

func stepAlongRoute(s *vehicleState, tickSec float64) {
	if s.Route == nil || len(s.Route.Points) < 2 {
		planRoute(s)
	}
	remKm := s.SpeedKmh * (tickSec / 3600.0)
	for remKm > 0 && s.Route.SegIndex < len(s.Route.Points)-1 {
		a := s.Route.Points[s.Route.SegIndex]
		b := s.Route.Points[s.Route.SegIndex+1]
		segLen := haversineKm(a, b)
		leftOnSeg := segLen - s.Route.SegOffset
		if remKm >= leftOnSeg {
			s.Position = b
			s.Route.SegIndex++
			s.Route.SegOffset = 0
			remKm -= leftOnSeg
			continue
		}
		t := (s.Route.SegOffset + remKm) / segLen
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		s.Position = lerp(a, b, t)
		s.Route.SegOffset += remKm
		remKm = 0
	}
	if s.Route.SegIndex >= len(s.Route.Points)-1 {
		planRoute(s)
	}
}

// advance moves the vehicle by one tick and burns fuel while the engine runs.
// A nearly empty tank is refilled and the engine is occasionally toggled.
func advance(s *vehicleState, interval time.Duration) {
	if rand.Float64() < 0.05 {
		s.Engine = !s.Engine
	}
	if !s.Engine {
		return
	}

	s.SpeedKmh += (rand.Float64()*2 - 1) * 1.5
	if s.SpeedKmh < 15 {
		s.SpeedKmh = 15
	}
	if s.SpeedKmh > 90 {
		s.SpeedKmh = 90
	}

	stepAlongRoute(s, interval.Seconds())

	km := s.SpeedKmh * (interval.Seconds() / 3600.0)
	s.FuelPct -= km * 0.4
	if s.FuelPct < 5 {
		s.FuelPct = 100
	}
}

func telemetryFromState(s *vehicleState, now time.Time) models.VehicleTelemetry {
	fuel := int(math.Round(s.FuelPct))
	engine := s.Engine
	location := s.Position.String()
	return models.VehicleTelemetry{
		VehicleID:    s.VehicleID,
		FuelLevel:    &fuel,
		EngineStatus: &engine,
		Location:     &location,
		Timestamp:    &now,
	}
}

// --- Delivery ---

type publisher interface {
	Publish(ctx context.Context, msg models.VehicleTelemetry) error
}

// mqttPublisher sends telemetry to the broker for the API to ingest.
type mqttPublisher struct {
	client mqtt.Client
}

func (p *mqttPublisher) Publish(_ context.Context, msg models.VehicleTelemetry) error {
	return telemetry.Publish(p.client, msg)
}

// apiPublisher writes telemetry straight through the vehicles endpoint.
type apiPublisher struct {
	client *apiclient.Client
}

func (p *apiPublisher) Publish(ctx context.Context, msg models.VehicleTelemetry) error {
	_, err := p.client.UpdateVehicle(ctx, msg.VehicleID, msg.Patch(time.Now()))
	return err
}

func createVehicle(ctx context.Context, client *apiclient.Client) (*models.Vehicle, error) {
	now := time.Now()
	title := vehicleTitles[rand.Intn(len(vehicleTitles))]
	v, err := client.CreateVehicle(ctx, models.VehicleInput{
		VIN:          randomVIN(),
		Title:        title,
		Address:      "Simulated depot",
		ExpiryTime:   now.AddDate(1, 0, 0),
		FuelLevel:    50 + rand.Intn(51),
		EngineStatus: true,
		LastUpdate:   now,
		Location:     randomLocation().String(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	log.WithFields(log.Fields{
		"vehicle_id": v.ID,
		"vin":        v.VIN,
		"title":      title,
	}).Info("Created vehicle")
	return v, nil
}

func stateFromVehicle(v models.Vehicle) *vehicleState {
	pos, err := models.ParseLocation(v.Location)
	if err != nil {
		pos = randomLocation()
	}
	return &vehicleState{
		VehicleID: v.ID,
		Position:  pos,
		SpeedKmh:  30 + rand.Float64()*30,
		FuelPct:   float64(v.FuelLevel),
		Engine:    v.EngineStatus,
	}
}

func simulateVehicle(ctx context.Context, pub publisher, s *vehicleState, interval time.Duration) {
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		advance(s, interval)
		msg := telemetryFromState(s, time.Now())
		if err := pub.Publish(ctx, msg); err != nil {
			log.WithError(err).WithField("vehicle_id", s.VehicleID).Error("Failed to send telemetry")
			continue
		}
		log.WithFields(log.Fields{
			"vehicle_id": s.VehicleID,
			"fuel":       *msg.FuelLevel,
			"engine":     *msg.EngineStatus,
			"location":   *msg.Location,
		}).Debug("Sent telemetry")
	}
}

type simConfig struct {
	apiURL       string
	email        string
	password     string
	token        string
	extra        int
	interval     time.Duration
	brokerURL    string
	mqttClientID string
}

func loadSimConfig() simConfig {
	cfg := simConfig{
		apiURL:       os.Getenv("API_BASE_URL"),
		email:        os.Getenv("SIM_EMAIL"),
		password:     os.Getenv("SIM_PASSWORD"),
		token:        os.Getenv("SIM_AUTH_TOKEN"),
		interval:     2 * time.Second,
		brokerURL:    os.Getenv("MQTT_BROKER_URL"),
		mqttClientID: os.Getenv("SIM_MQTT_CLIENT_ID"),
	}
	if cfg.email == "" {
		cfg.email = "demo@example.com"
	}
	if cfg.password == "" {
		cfg.password = "demo123"
	}
	if cfg.mqttClientID == "" {
		cfg.mqttClientID = "fleet-simulator"
	}
	if val := os.Getenv("FLEET_SIZE"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			cfg.extra = n
		}
	}
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			cfg.interval = time.Duration(n) * time.Second
		}
	}
	return cfg
}

func newAPIClient(cfg simConfig) *apiclient.Client {
	if cfg.apiURL == "" {
		return apiclient.NewFromEnv(apiclient.WithToken(cfg.token))
	}
	return apiclient.New(cfg.apiURL, apiclient.WithToken(cfg.token))
}

// prepareFleet signs in when no token was supplied, then returns states for
// the existing fleet plus cfg.extra new vehicles.
func prepareFleet(ctx context.Context, client *apiclient.Client, cfg simConfig) ([]*vehicleState, error) {
	if client.Token() == "" {
		if _, err := client.Login(ctx, cfg.email, cfg.password); err != nil {
			return nil, fmt.Errorf("login as %s: %w", cfg.email, err)
		}
	}

	vehicles, err := client.ListVehicles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	for i := 0; i < cfg.extra; i++ {
		v, err := createVehicle(ctx, client)
		if err != nil {
			log.WithError(err).Error("Failed to create vehicle")
			continue
		}
		vehicles = append(vehicles, *v)
	}

	states := make([]*vehicleState, 0, len(vehicles))
	for _, v := range vehicles {
		states = append(states, stateFromVehicle(v))
	}
	return states, nil
}

func run(ctx context.Context, cfg simConfig) error {
	client := newAPIClient(cfg)
	states, err := prepareFleet(ctx, client, cfg)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		return fmt.Errorf("no vehicles to simulate")
	}

	var pub publisher = &apiPublisher{client: client}
	if cfg.brokerURL != "" {
		mc, err := telemetry.Connect(cfg.brokerURL, cfg.mqttClientID)
		if err != nil {
			return err
		}
		defer mc.Disconnect(250)
		pub = &mqttPublisher{client: mc}
	}

	log.WithFields(log.Fields{
		"vehicles": len(states),
		"interval": cfg.interval,
		"mqtt":     cfg.brokerURL != "",
	}).Info("Telemetry simulation started")

	var wg sync.WaitGroup
	for _, s := range states {
		wg.Add(1)
		go func(s *vehicleState) {
			defer wg.Done()
			simulateVehicle(ctx, pub, s, cfg.interval)
		}(s)
	}
	wg.Wait()
	return nil
}

func main() {
	cfg := loadSimConfig()
	log.WithFields(log.Fields{
		"fleet_size": cfg.extra,
		"api_url":    cfg.apiURL,
		"interval":   cfg.interval,
	}).Info("Starting fleet simulation")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Simulation stopped")
	}
}
