// Package catalog loads the museum catalog the simulator and CLI work from.
package catalog

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultRadiusMeters is the proximity-gate radius applied when a museum does
// not override it.
const DefaultRadiusMeters = 20

// Object is one cultural object on display in a museum.
type Object struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

// Museum is one catalog record.
type Museum struct {
	ID           int64    `yaml:"id"`
	Name         string   `yaml:"name"`
	Latitude     float64  `yaml:"latitude"`
	Longitude    float64  `yaml:"longitude"`
	RadiusMeters float64  `yaml:"radius_meters"`
	Objects      []Object `yaml:"objects"`
}

// Catalog is the full museum list.
type Catalog struct {
	Museums []Museum `yaml:"museums"`
}

// Load reads a catalog YAML file from disk.
func Load(path string) (Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("open catalog: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse decodes and validates a catalog document.
func Parse(r io.Reader) (Catalog, error) {
	var loaded Catalog
	if err := yaml.NewDecoder(r).Decode(&loaded); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[int64]bool, len(loaded.Museums))
	for i := range loaded.Museums {
		museum := &loaded.Museums[i]
		if museum.ID <= 0 {
			return Catalog{}, fmt.Errorf("museum %q: id must be positive", museum.Name)
		}
		if seen[museum.ID] {
			return Catalog{}, fmt.Errorf("museum id %d appears twice", museum.ID)
		}
		seen[museum.ID] = true
		if museum.RadiusMeters <= 0 {
			museum.RadiusMeters = DefaultRadiusMeters
		}
		objectSeen := make(map[int64]bool, len(museum.Objects))
		for _, obj := range museum.Objects {
			if obj.ID <= 0 {
				return Catalog{}, fmt.Errorf("museum %d: object id must be positive", museum.ID)
			}
			if objectSeen[obj.ID] {
				return Catalog{}, fmt.Errorf("museum %d: object id %d appears twice", museum.ID, obj.ID)
			}
			objectSeen[obj.ID] = true
		}
	}
	return loaded, nil
}

// ByID returns the museum with the given id.
func (c Catalog) ByID(museumID int64) (Museum, bool) {
	for _, museum := range c.Museums {
		if museum.ID == museumID {
			return museum, true
		}
	}
	return Museum{}, false
}
