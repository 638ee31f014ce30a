package geolocate

import (
	"github.com/samirrijal/groupmap/internal/core/domain"
	"github.com/samirrijal/groupmap/internal/pkg/geospatial"
)

const (
	farAwayDevice = "You appear to be quite far away or using a mobile connection on a device without a GPS."
	farAwayPrompt = "You appear to be either quite far away or using a mobile connection.<br />" +
		"<a href=\"#tp-locate\">Click here to use your actual location.</a>"
	farAwayNoSensor = "You appear to be either quite far away or using a mobile connection.<br />" +
		"Your browser doesn't support geolocation so we can't find a small group near you."
)

// FarAwayMessage is the hint shown when nearby results are far from the
// resolved location. Server results on a device with a sensor offer the
// device lookup instead.
func FarAwayMessage(res domain.GeoResult, hasSensor bool) string {
	switch {
	case res.Type == domain.GeoSourceNav:
		return farAwayDevice
	case hasSensor:
		return farAwayPrompt
	default:
		return farAwayNoSensor
	}
}

// FarAway reports whether every record lies more than thresholdKm from res.
// No located record counts as far away.
func FarAway(res domain.GeoResult, recs []domain.ItemRecord, thresholdKm float64) bool {
	for _, rec := range recs {
		if rec.Distance != nil {
			if *rec.Distance/1000 <= thresholdKm {
				return false
			}
			continue
		}
		if d, ok := geospatial.NearestKm(res.Lat, res.Lng, rec.Geo); ok && d <= thresholdKm {
			return false
		}
	}
	return true
}
