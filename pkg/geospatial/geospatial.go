package geospatial

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	// ErrMissingCoordinates is returned when either latitude or longitude is absent
	ErrMissingCoordinates = errors.New("location must include lat and lng")
	// ErrInvalidCoordinates is returned when a coordinate is outside its range
	ErrInvalidCoordinates = errors.New("location coordinates out of range")
)

// coordinate accepts both JSON numbers and numeric strings; mobile clients
// send either.
type coordinate struct {
	value *float64
}

func (c *coordinate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	raw := string(data)
	if strings.HasPrefix(raw, `"`) {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		raw = strings.TrimSpace(unquoted)
		if raw == "" {
			return nil
		}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %q", raw)
	}
	c.value = &v
	return nil
}

type latLngPayload struct {
	Lat coordinate `json:"lat"`
	Lng coordinate `json:"lng"`
}

// ParseLatLng parses a `{"lat": .., "lng": ..}` payload into a point
func ParseLatLng(raw string) (orb.Point, error) {
	if strings.TrimSpace(raw) == "" {
		return orb.Point{}, ErrMissingCoordinates
	}

	var payload latLngPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return orb.Point{}, fmt.Errorf("invalid location payload: %w", err)
	}
	if payload.Lat.value == nil || payload.Lng.value == nil {
		return orb.Point{}, ErrMissingCoordinates
	}

	point := orb.Point{*payload.Lng.value, *payload.Lat.value}
	if err := ValidatePoint(point); err != nil {
		return orb.Point{}, err
	}
	return point, nil
}

// ValidatePoint checks longitude and latitude ranges
func ValidatePoint(p orb.Point) error {
	if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
		return ErrInvalidCoordinates
	}
	return nil
}

// PointGeoJSON renders a point as a GeoJSON geometry
func PointGeoJSON(p orb.Point) ([]byte, error) {
	return geojson.NewGeometry(p).MarshalJSON()
}
