// Package telemetry applies vehicle status messages received over MQTT to
// the vehicle store.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-dashboard/internal/db"
	"github.com/ukydev/fleet-dashboard/internal/metrics"
	"github.com/ukydev/fleet-dashboard/internal/models"
)

const (
	DefaultTopic = "fleet/vehicles/+/status"
	mqttTimeout  = 10 * time.Second
)

var ErrInvalidMessage = errors.New("invalid telemetry message")

// TopicForVehicle returns the status topic a vehicle publishes on.
func TopicForVehicle(vehicleID string) string {
	return "fleet/vehicles/" + vehicleID + "/status"
}

// vehicleIDFromTopic extracts {id} from fleet/vehicles/{id}/status.
func vehicleIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) == 4 && parts[0] == "fleet" && parts[1] == "vehicles" && parts[3] == "status" {
		return parts[2]
	}
	return ""
}

// Connect opens an MQTT connection to brokerURL.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(mqttTimeout).
		SetOnConnectHandler(func(mqtt.Client) {
			log.WithField("broker", brokerURL).Info("Connected to MQTT broker")
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(mqttTimeout) {
		return nil, fmt.Errorf("mqtt connect to %s timed out", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

// Publish sends msg on the status topic of msg.VehicleID.
func Publish(client mqtt.Client, msg models.VehicleTelemetry) error {
	if msg.VehicleID == "" {
		return fmt.Errorf("%w: missing vehicle id", ErrInvalidMessage)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal telemetry: %w", err)
	}
	token := client.Publish(TopicForVehicle(msg.VehicleID), 1, false, payload)
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt publish timed out")
	}
	return token.Error()
}

// Ingestor applies telemetry messages to a vehicle repository.
type Ingestor struct {
	vehicles db.VehicleRepository
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewIngestor creates an ingestor writing to vehicles.
func NewIngestor(vehicles db.VehicleRepository, rec metrics.Recorder) *Ingestor {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Ingestor{vehicles: vehicles, metrics: rec, now: time.Now}
}

// Subscribe routes messages on topic to Handle until ctx is done.
func (i *Ingestor) Subscribe(ctx context.Context, client mqtt.Client, topic string) error {
	if topic == "" {
		topic = DefaultTopic
	}
	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		if err := i.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
			log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropped telemetry message")
		}
	})
	if !token.WaitTimeout(mqttTimeout) {
		return fmt.Errorf("mqtt subscribe to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		client.Unsubscribe(topic).WaitTimeout(mqttTimeout)
	}()
	log.WithField("topic", topic).Info("Subscribed to vehicle telemetry")
	return nil
}

// Handle decodes one message and patches the vehicle it refers to.
func (i *Ingestor) Handle(ctx context.Context, topic string, payload []byte) error {
	var msg models.VehicleTelemetry
	if err := json.Unmarshal(payload, &msg); err != nil {
		i.metrics.RecordTelemetry("invalid")
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.VehicleID == "" {
		msg.VehicleID = vehicleIDFromTopic(topic)
	}
	if err := validate(msg); err != nil {
		i.metrics.RecordTelemetry("invalid")
		return err
	}

	v, err := i.vehicles.UpdateVehicle(ctx, msg.VehicleID, msg.Patch(i.now()))
	if err != nil {
		if errors.Is(err, db.ErrVehicleNotFound) {
			i.metrics.RecordTelemetry("unknown_vehicle")
		} else {
			i.metrics.RecordTelemetry("error")
		}
		return fmt.Errorf("apply telemetry for vehicle %s: %w", msg.VehicleID, err)
	}

	i.metrics.RecordTelemetry("applied")
	log.WithFields(log.Fields{
		"vehicle_id":    v.ID,
		"fuel_level":    v.FuelLevel,
		"engine_status": v.EngineStatus,
	}).Debug("Applied telemetry")
	return nil
}

func validate(msg models.VehicleTelemetry) error {
	if msg.VehicleID == "" {
		return fmt.Errorf("%w: missing vehicle id", ErrInvalidMessage)
	}
	if msg.FuelLevel != nil && (*msg.FuelLevel < 0 || *msg.FuelLevel > 100) {
		return fmt.Errorf("%w: fuel level %d out of range", ErrInvalidMessage, *msg.FuelLevel)
	}
	if msg.Location != nil {
		if _, err := models.ParseLocation(*msg.Location); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
		}
	}
	return nil
}
