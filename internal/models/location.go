package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// ParseLocation parses the "lat,lng" form stored on vehicles.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("invalid location %q: want \"lat,lng\"", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Location{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Location{}, fmt.Errorf("location %q out of range", s)
	}
	return Location{Lat: lat, Lon: lon}, nil
}

// String formats the location as "lat,lng".
func (l Location) String() string {
	return strconv.FormatFloat(l.Lat, 'f', 4, 64) + "," + strconv.FormatFloat(l.Lon, 'f', 4, 64)
}
