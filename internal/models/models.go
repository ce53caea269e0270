package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type LocationKind string

const (
	LocationHotspot LocationKind = "hotspot"
	LocationDemo    LocationKind = "demo"
)

type Location struct {
	ID   int64        `json:"id"`
	Name string       `json:"name"`
	Lat  float64      `json:"lat"`
	Lng  float64      `json:"lng"`
	Kind LocationKind `json:"type"`
}

func (l Location) Coord() Coord { return Coord{Lat: l.Lat, Lng: l.Lng} }

type SensorReading struct {
	ID           int64     `json:"id"`
	LocationID   int64     `json:"location_id"`
	AQI          int       `json:"aqi"`
	VehicleCount int       `json:"vehicle_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// RouteCandidate is built per request and never persisted.
type RouteCandidate struct {
	ID            int     `json:"id"`
	Summary       string  `json:"summary"`
	Distance      string  `json:"distance"`
	Duration      string  `json:"duration"`
	DistanceKm    float64 `json:"distance_km"`
	DurationSec   int     `json:"duration_sec"`
	TrafficLevel  float64 `json:"traffic_level"`
	AQIAvg        float64 `json:"aqi_avg"`
	EcoScore      float64 `json:"eco_score"`
	IsRecommended bool    `json:"is_recommended"`
	Path          []Coord `json:"path"`
}

type RideStatus string

const (
	RideActive RideStatus = "active"
	RideFull   RideStatus = "full"
)

type Ride struct {
	ID            int64      `json:"id"`
	Owner         string     `json:"owner"`
	SrcID         int64      `json:"src_id"`
	DstID         int64      `json:"dst_id"`
	Capacity      int        `json:"capacity"`
	DepartureTime string     `json:"time"`
	Status        RideStatus `json:"status"`
}

// RideListing is a ride joined with its location names for the community view.
type RideListing struct {
	Ride
	SrcName string `json:"src_name"`
	DstName string `json:"dst_name"`
}

type Booking struct {
	ID        int64     `json:"id"`
	RideID    int64     `json:"ride_id"`
	UserID    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ViolationStatus string

const (
	ViolationPending ViolationStatus = "pending"
	ViolationBlocked ViolationStatus = "blocked"
)

type Violation struct {
	ID        int64           `json:"id"`
	VehicleID string          `json:"vehicle_id"`
	Reason    string          `json:"reason"`
	Amount    int             `json:"amount"`
	Status    ViolationStatus `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	HasCar       bool   `json:"has_car"`
}

type Message struct {
	ID        int64     `json:"id"`
	RideID    int64     `json:"ride_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SafetyAlert struct {
	ID               int64     `json:"id"`
	RideID           int64     `json:"ride_id"`
	UserID           int64     `json:"user_id"`
	Username         string    `json:"username,omitempty"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	KeywordsDetected string    `json:"keywords_detected"`
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
}
