package db

// Seed corpus shared by the sqlite and mock backends so a dependency-free
// deployment still answers the precompiled questions with plausible data.

type districtSeed struct {
	geoID      int
	name       string
	population int64
}

const (
	barcelonaGeoID      = 1
	barcelonaPopulation = 1_620_343
	seedYear            = 2024
)

var barcelonaDistricts = []districtSeed{
	{geoID: 101, name: "Ciutat Vella", population: 108_331},
	{geoID: 102, name: "Eixample", population: 266_416},
	{geoID: 103, name: "Sants-Montjuïc", population: 183_120},
	{geoID: 104, name: "Les Corts", population: 82_033},
	{geoID: 105, name: "Sarrià-Sant Gervasi", population: 149_279},
	{geoID: 106, name: "Gràcia", population: 121_798},
	{geoID: 107, name: "Horta-Guinardó", population: 171_495},
	{geoID: 108, name: "Nou Barris", population: 170_669},
	{geoID: 109, name: "Sant Andreu", population: 148_560},
	{geoID: 110, name: "Sant Martí", population: 240_521},
}
