package storage

import "github.com/example/ecoride/internal/models"

// SeedLocations is the Bengaluru hotspot set. Ids are fixed: the corridor
// sensor and the hardware gateway both address the demo zone as 9.
var SeedLocations = []models.Location{
	{ID: 1, Name: "Koramangala", Lat: 12.9352, Lng: 77.6245, Kind: models.LocationHotspot},
	{ID: 2, Name: "MG Road", Lat: 12.9716, Lng: 77.5946, Kind: models.LocationHotspot},
	{ID: 3, Name: "Whitefield", Lat: 12.9698, Lng: 77.7500, Kind: models.LocationHotspot},
	{ID: 4, Name: "Electronic City", Lat: 12.8452, Lng: 77.6602, Kind: models.LocationHotspot},
	{ID: 5, Name: "Yelahanka", Lat: 13.1007, Lng: 77.5963, Kind: models.LocationHotspot},
	{ID: 6, Name: "Hebbal", Lat: 13.0354, Lng: 77.5988, Kind: models.LocationHotspot},
	{ID: 7, Name: "Indiranagar", Lat: 12.9784, Lng: 77.6408, Kind: models.LocationHotspot},
	{ID: 8, Name: "Jayanagar", Lat: 12.9308, Lng: 77.5838, Kind: models.LocationHotspot},
	{ID: 9, Name: "BMS College Road (Demo Zone)", Lat: 12.9410, Lng: 77.5655, Kind: models.LocationDemo},
	{ID: 10, Name: "Kengeri", Lat: 12.9177, Lng: 77.4833, Kind: models.LocationHotspot},
	{ID: 11, Name: "Banashankari", Lat: 12.9255, Lng: 77.5468, Kind: models.LocationHotspot},
	{ID: 12, Name: "Malleshwaram", Lat: 13.0031, Lng: 77.5643, Kind: models.LocationHotspot},
}
