package locate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/oschwald/geoip2-golang"

	"github.com/JaideepNaiduKillari/TM-V2.0/internal/camera"
)

func newTracker() *Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(camera.New(logger), logger)
}

func TestLocateSuccess(t *testing.T) {
	p := newTracker()

	out := p.Locate(context.Background(), Reported{Position: &Position{Lat: 22.1, Lon: 82.3}})
	if !out.Available() {
		t.Fatalf("Locate failed: %v", out.Err)
	}
	if out.Camera == nil || out.Camera.Kind != camera.FlyTo || out.Camera.Zoom != 17 {
		t.Fatalf("Camera = %v, want flyTo zoom 17", out.Camera)
	}
	if out.Camera.LatLng() != [2]float64{22.1, 82.3} {
		t.Errorf("LatLng = %v", out.Camera.LatLng())
	}

	m, ok := p.Marker()
	if !ok {
		t.Fatal("marker not set")
	}
	if m.Position != (Position{Lat: 22.1, Lon: 82.3}) || m.Label != MarkerLabel {
		t.Errorf("marker = %+v", m)
	}
}

func TestLocateUnavailable(t *testing.T) {
	tests := []struct {
		name   string
		g      Geolocator
		notice string
	}{
		{"no api", Reported{}, NoticeUnsupported},
		{"nil geolocator", nil, NoticeUnsupported},
		{"denied", Reported{Denied: true}, NoticeNoFix},
		{"out of range", Reported{Position: &Position{Lat: 123, Lon: 0}}, NoticeNoFix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTracker()
			out := p.Locate(context.Background(), tt.g)
			if out.Available() {
				t.Fatal("expected unavailable")
			}
			if !errors.Is(out.Err, ErrUnavailable) {
				t.Errorf("Err = %v, want ErrUnavailable", out.Err)
			}
			if out.Notice != tt.notice {
				t.Errorf("Notice = %q, want %q", out.Notice, tt.notice)
			}
			if out.Camera != nil || out.Marker != nil {
				t.Error("unavailable outcome must not move the camera or place a marker")
			}
			if _, ok := p.Marker(); ok {
				t.Error("marker should not be set")
			}
		})
	}
}

func TestFailureKeepsPreviousMarker(t *testing.T) {
	p := newTracker()
	p.Locate(context.Background(), Reported{Position: &Position{Lat: 1, Lon: 2}})
	p.Locate(context.Background(), Reported{Denied: true})

	m, ok := p.Marker()
	if !ok || m.Position != (Position{Lat: 1, Lon: 2}) {
		t.Errorf("marker = %+v, %v; want the earlier fix", m, ok)
	}
}

func TestLastResolveWins(t *testing.T) {
	p := newTracker()

	slowRelease := make(chan struct{})
	slow := GeolocatorFunc(func(ctx context.Context) (Position, error) {
		<-slowRelease
		return Position{Lat: 1, Lon: 1}, nil
	})
	fast := Reported{Position: &Position{Lat: 2, Lon: 2}}

	slowCh := p.Start(context.Background(), slow)
	<-p.Start(context.Background(), fast)

	if m, _ := p.Marker(); m.Position.Lat != 2 {
		t.Fatalf("marker = %+v, want the fast fix first", m)
	}

	close(slowRelease)
	<-slowCh

	m, _ := p.Marker()
	if m.Position.Lat != 1 {
		t.Errorf("marker = %+v, want the slow fix which resolved last", m)
	}
}

func TestChain(t *testing.T) {
	fail := GeolocatorFunc(func(ctx context.Context) (Position, error) { return Position{}, ErrNoFix })
	ok := Reported{Position: &Position{Lat: 5, Lon: 6}}

	pos, err := Chain{Reported{}, fail, ok}.Locate(context.Background())
	if err != nil || pos != (Position{Lat: 5, Lon: 6}) {
		t.Errorf("Chain = %v, %v", pos, err)
	}

	_, err = Chain{Reported{}, fail}.Locate(context.Background())
	if !errors.Is(err, ErrNoFix) {
		t.Errorf("err = %v, want ErrNoFix to win over ErrUnsupported", err)
	}

	_, err = Chain{}.Locate(context.Background())
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("empty chain err = %v, want ErrUnsupported", err)
	}
}

func TestRestore(t *testing.T) {
	p := newTracker()
	p.Restore(Marker{Position: Position{Lat: 3, Lon: 4}, Label: MarkerLabel})
	if m, ok := p.Marker(); !ok || m.Position.Lon != 4 {
		t.Errorf("Marker() = %+v, %v", m, ok)
	}
}

func TestParseIP(t *testing.T) {
	tests := map[string]net.IP{
		"203.0.113.7:5555": net.ParseIP("203.0.113.7"),
		"203.0.113.7":      net.ParseIP("203.0.113.7"),
		"[::1]:80":         net.ParseIP("::1"),
		"nonsense":         nil,
	}
	for in, want := range tests {
		if got := parseIP(in); !got.Equal(want) {
			t.Errorf("parseIP(%q) = %v, want %v", in, got, want)
		}
	}
}

type fakeCities map[string]geoip2.City

func (f fakeCities) City(ip net.IP) (*geoip2.City, error) {
	rec, ok := f[ip.String()]
	if !ok {
		return nil, errors.New("address not found")
	}
	return &rec, nil
}

func (f fakeCities) Close() error { return nil }

func cityAt(lat, lon float64) geoip2.City {
	var rec geoip2.City
	rec.Location.Latitude = lat
	rec.Location.Longitude = lon
	return rec
}

func TestGeoIPFor(t *testing.T) {
	db := &GeoIPDB{reader: fakeCities{
		"203.0.113.7":  cityAt(21.25, 81.63),
		"198.51.100.1": cityAt(0, 0),
	}}
	ctx := context.Background()

	pos, err := db.For("203.0.113.7:5555").Locate(ctx)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if pos != (Position{Lat: 21.25, Lon: 81.63, Approximate: true}) {
		t.Errorf("pos = %+v", pos)
	}

	for _, addr := range []string{"198.51.100.1", "192.0.2.1", "nonsense"} {
		if _, err := db.For(addr).Locate(ctx); !errors.Is(err, ErrNoFix) {
			t.Errorf("For(%q) err = %v, want ErrNoFix", addr, err)
		}
	}
}

func TestApproximateOutcome(t *testing.T) {
	p := newTracker()
	g := GeolocatorFunc(func(ctx context.Context) (Position, error) {
		return Position{Lat: 21.25, Lon: 81.63, Approximate: true}, nil
	})

	out := p.Locate(context.Background(), g)
	if !out.Available() {
		t.Fatalf("Locate failed: %v", out.Err)
	}
	if out.Camera.Zoom != camera.AreaZoom || out.Marker.Label != ApproximateLabel {
		t.Errorf("camera zoom %d, label %q", out.Camera.Zoom, out.Marker.Label)
	}
}

func TestReportedIsNeverApproximate(t *testing.T) {
	pos, err := Reported{Position: &Position{Lat: 1, Lon: 2, Approximate: true}}.Locate(context.Background())
	if err != nil || pos.Approximate {
		t.Errorf("pos = %+v, err = %v", pos, err)
	}
}
