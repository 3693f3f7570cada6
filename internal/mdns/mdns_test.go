package mdns

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

type fakeServer struct {
	shutdowns atomic.Int32
}

func (s *fakeServer) Shutdown() { s.shutdowns.Add(1) }

func TestAdvertise_RegistersAndShutsDown(t *testing.T) {
	fs := &fakeServer{}
	var gotInstance, gotService, gotDomain string
	var gotPort int
	var gotText []string

	prev := register
	register = func(instance, service, domain string, port int, text []string) (server, error) {
		gotInstance, gotService, gotDomain, gotPort, gotText = instance, service, domain, port, text
		return fs, nil
	}
	t.Cleanup(func() { register = prev })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- Advertise(ctx, Config{
			Instance: "kitchen",
			Service:  "_buzzer._tcp",
			Domain:   "local.",
			Port:     8080,
			Text:     map[string]string{"path": "/beep", "version": "1"},
		}, nil)
	}()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Advertise: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Advertise did not return")
	}

	if gotInstance != "kitchen" || gotService != "_buzzer._tcp" || gotDomain != "local." || gotPort != 8080 {
		t.Fatalf("register(%q,%q,%q,%d)", gotInstance, gotService, gotDomain, gotPort)
	}
	if want := []string{"path=/beep", "version=1"}; !reflect.DeepEqual(gotText, want) {
		t.Fatalf("text=%q want %q", gotText, want)
	}
	if n := fs.shutdowns.Load(); n != 1 {
		t.Fatalf("shutdowns=%d want 1", n)
	}
}

func TestAdvertise_RegisterError(t *testing.T) {
	prev := register
	register = func(string, string, string, int, []string) (server, error) {
		return nil, errors.New("no multicast interface")
	}
	t.Cleanup(func() { register = prev })

	err := Advertise(context.Background(), Config{Port: 80}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestAdvertise_InvalidPort(t *testing.T) {
	if err := Advertise(context.Background(), Config{Port: 0}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPortFromListen(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{":8080", 8080, false},
		{"0.0.0.0:80", 80, false},
		{"[::]:9000", 9000, false},
		{"localhost", 0, true},
		{":http", 0, true},
	}
	for _, tt := range tests {
		got, err := PortFromListen(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("PortFromListen(%q) err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("PortFromListen(%q)=%d want %d", tt.in, got, tt.want)
		}
	}
}
