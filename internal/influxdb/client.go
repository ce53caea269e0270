package influxdb

import (
	"context"
	"fmt"
	"strconv"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/example/ecoride/internal/models"
)

const measurement = "sensor_readings"

// pointWriter is the subset of api.WriteAPI used here.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Client mirrors accepted sensor readings into an InfluxDB v2 bucket for
// dashboarding. Writes are asynchronous and batched by the client library.
type Client struct {
	client   influxdb2.Client
	writeAPI pointWriter
}

// NewClient connects and verifies the server is reachable.
func NewClient(ctx context.Context, url, token, org, bucket string) (*Client, error) {
	client := influxdb2.NewClient(url, token)
	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("influxdb health check: %w", err)
	}
	return &Client{client: client, writeAPI: client.WriteAPI(org, bucket)}, nil
}

func readingPoint(r models.SensorReading) *write.Point {
	return write.NewPoint(
		measurement,
		map[string]string{"location_id": strconv.FormatInt(r.LocationID, 10)},
		map[string]interface{}{
			"aqi":           r.AQI,
			"vehicle_count": r.VehicleCount,
		},
		r.Timestamp,
	)
}

func (c *Client) WriteReading(r models.SensorReading) {
	c.writeAPI.WritePoint(readingPoint(r))
}

// Close flushes pending points and releases the client.
func (c *Client) Close() {
	c.writeAPI.Flush()
	if c.client != nil {
		c.client.Close()
	}
}
