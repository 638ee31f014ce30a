package mapsession

import (
	"context"
	"sync"

	"github.com/samirrijal/groupmap/internal/core/geolocate"
)

// reportedSensor is a geolocate.Sensor fed by the client's device reports.
type reportedSensor struct {
	mu         sync.Mutex
	supported  bool
	permission geolocate.PermissionState
	fix        *Fix
	errCode    int
}

func (s *reportedSensor) report(supported bool, permission string, fix *Fix, errCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supported = supported
	s.permission = geolocate.PermissionState(permission)
	s.fix = fix
	s.errCode = errCode
}

// Available reports whether the client's device supports geolocation.
func (s *reportedSensor) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supported
}

func (s *reportedSensor) Permission(context.Context) (geolocate.PermissionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission, nil
}

func (s *reportedSensor) CurrentPosition(ctx context.Context) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if s.fix == nil {
		code := s.errCode
		if code == 0 {
			code = 2
		}
		return 0, 0, geolocate.FromCode(code)
	}
	return s.fix.Lat, s.fix.Lng, nil
}
