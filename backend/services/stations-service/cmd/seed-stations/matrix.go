package main

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v6"

	"radiowalk/backend/libs/geo"
	"radiowalk/backend/services/stations-service/internal/models"
)

var genres = []string{"jazz", "rock", "ambient", "techno", "hip-hop", "folk", "classical", "talk", "lofi", "house"}

type seedStation struct {
	input models.StationInput
	share bool
}

func fixed(name string, origin geo.Point, dLat, dLon float64, visibility models.Visibility, tags string) seedStation {
	return seedStation{input: models.StationInput{
		Name:       name,
		Latitude:   origin.Lat + dLat,
		Longitude:  origin.Lon + dLon,
		Visibility: visibility,
		Tags:       tags,
		StreamLink: fmt.Sprintf("https://streams.radiowalk.local/%s", strings.ReplaceAll(strings.ToLower(name), " ", "-")),
	}}
}

// stationMatrix lays out stations around origin: two public stations inside the nearby radius,
// two just outside it, a private one to share and a private one to keep, then filler.
func stationMatrix(origin geo.Point, faker *gofakeit.Faker, filler int) []seedStation {
	hideout := fixed("Hideout Sessions", origin, 0.01, 0, models.VisibilityPrivate, "lofi")
	hideout.share = true

	out := []seedStation{
		fixed("Mission Pirate Radio", origin, 0.01, 0, models.VisibilityPublic, "rock, punk"),
		fixed("Sunset Signal", origin, 0, -0.045, models.VisibilityPublic, "ambient"),
		fixed("Bay Bridge Beats", origin, 0, 0.08, models.VisibilityPublic, "house"),
		fixed("North Beach Nights", origin, 0.05, 0, models.VisibilityPublic, "jazz"),
		hideout,
		fixed("Basement Tapes", origin, -0.02, 0, models.VisibilityPrivate, "folk"),
	}

	for i := 0; i < filler; i++ {
		visibility := models.VisibilityPublic
		if faker.Number(0, 3) == 0 {
			visibility = models.VisibilityPrivate
		}
		genre := faker.RandomString(genres)
		out = append(out, seedStation{input: models.StationInput{
			Name:       fmt.Sprintf("%s %s FM", faker.Company(), strings.ToUpper(genre[:1])+genre[1:]),
			Latitude:   clamp(origin.Lat+faker.Float64Range(-0.06, 0.06), -90, 90),
			Longitude:  clamp(origin.Lon+faker.Float64Range(-0.06, 0.06), -180, 180),
			Visibility: visibility,
			Tags:       genre,
			StreamLink: faker.URL(),
			StreamName: faker.BuzzWord(),
			Likes:      faker.Number(0, 250),
		}})
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
