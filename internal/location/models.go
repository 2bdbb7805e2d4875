// Package location holds the catalog of places for which run conditions are
// served, and the one-off bootstrap that fills it.
package location

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrNotFound        = errors.New("location not found")
	ErrInvalidID       = errors.New("location id must not be blank")
	ErrInvalidLocation = errors.New("invalid location")
)

// ID is an opaque, non-blank location identifier.
type ID string

// ParseID trims s and rejects blank identifiers.
func ParseID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidID
	}
	return ID(s), nil
}

func (id ID) String() string { return string(id) }

// Type classifies the surroundings of a location.
type Type string

const (
	TypeUrban    Type = "URBAN"
	TypeSuburban Type = "SUBURBAN"
	TypeRural    Type = "RURAL"
	TypePark     Type = "PARK"
)

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool {
	switch t {
	case TypeUrban, TypeSuburban, TypeRural, TypePark:
		return true
	}
	return false
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64
	Lon float64
}

// Validate requires both components to be finite.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lon) || math.IsInf(c.Lon, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidLocation)
	}
	return nil
}

// Location is a catalog entry. It is written at bootstrap and only replaced
// wholesale afterwards.
type Location struct {
	ID          ID
	Name        string
	Coordinates Coordinates
	Type        Type
}

// New validates and builds a Location.
func New(id ID, name string, coords Coordinates, typ Type) (Location, error) {
	loc := Location{ID: id, Name: strings.TrimSpace(name), Coordinates: coords, Type: typ}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Validate checks the catalog invariants.
func (l Location) Validate() error {
	if strings.TrimSpace(string(l.ID)) == "" {
		return ErrInvalidID
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidLocation)
	}
	if err := l.Coordinates.Validate(); err != nil {
		return err
	}
	if !l.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidLocation, l.Type)
	}
	return nil
}
