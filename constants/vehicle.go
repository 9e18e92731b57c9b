package constants

import "strings"

type VehicleClass string

const (
	Car        VehicleClass = "car"
	Truck      VehicleClass = "truck"
	Bus        VehicleClass = "bus"
	Motorcycle VehicleClass = "motorcycle"
)

var vehicleClasses = []VehicleClass{Car, Truck, Bus, Motorcycle}

// VehicleClasses returns the detector labels that count as a vehicle sighting.
func VehicleClasses() []string {
	out := make([]string, len(vehicleClasses))
	for i, c := range vehicleClasses {
		out[i] = string(c)
	}
	return out
}

// CanonicalizeVehicle maps a raw detector label to a vehicle class.
// ok is false for labels outside the vehicle set (person, traffic light, ...).
func CanonicalizeVehicle(label string) (VehicleClass, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]VehicleClass{
		"motorbike": Motorcycle,
		"autobus":   Bus,
	}
	if c, ok := synonyms[normalized]; ok {
		return c, true
	}

	for _, c := range vehicleClasses {
		if normalized == string(c) {
			return c, true
		}
	}
	return "", false
}
