package ssrf

import (
	"context"
	"net"
	"testing"
)

type fakeResolver map[string][]net.IPAddr

func (f fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	if addrs, ok := f[host]; ok {
		return addrs, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func TestValidate_SchemeRejection(t *testing.T) {
	g := New()
	_, err := g.Validate(context.Background(), "ftp://example.com/file")
	if err == nil {
		t.Fatalf("expected rejection for non-http scheme")
	}
}

func TestValidate_BlocklistedHostname(t *testing.T) {
	g := New()
	for _, host := range []string{"localhost", "ip6-localhost", "0.0.0.0"} {
		_, err := g.Validate(context.Background(), "http://"+host+"/")
		if err == nil {
			t.Fatalf("expected rejection for hostname %q", host)
		}
	}
}

func TestValidate_LiteralIP(t *testing.T) {
	cases := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"loopback", "http://127.0.0.1/", true},
		{"linklocal", "http://169.254.1.1/", true},
		{"private10", "http://10.1.2.3/", true},
		{"private172", "http://172.16.0.5/", true},
		{"private192", "http://192.168.1.1/", true},
		{"cgnat", "http://100.64.0.1/", true},
		{"metadata", "http://169.254.169.254/", true},
		{"v6loopback", "http://[::1]/", true},
		{"v6linklocal", "http://[fe80::1]/", true},
		{"v6private", "http://[fc00::1]/", true},
		{"mapped-private", "http://[::ffff:10.0.0.1]/", true},
		{"public", "http://93.184.216.34/", false},
	}
	g := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Validate(context.Background(), tc.url)
			if tc.wantErr && err == nil {
				t.Fatalf("expected rejection for %s", tc.url)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected rejection for %s: %v", tc.url, err)
			}
		})
	}
}

func TestValidate_DNSResolution(t *testing.T) {
	resolver := fakeResolver{
		"internal.example.com": {{IP: net.ParseIP("10.0.0.5")}},
		"public.example.com":   {{IP: net.ParseIP("93.184.216.34")}},
	}
	g := New(WithResolver(resolver))

	if _, err := g.Validate(context.Background(), "https://internal.example.com/"); err == nil {
		t.Fatalf("expected rejection for resolved private address")
	}
	target, err := g.Validate(context.Background(), "https://public.example.com/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Port != "443" {
		t.Fatalf("expected default https port 443, got %s", target.Port)
	}
}

func TestValidate_DefaultPorts(t *testing.T) {
	g := New()
	target, err := g.Validate(context.Background(), "http://93.184.216.34/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Port != "80" {
		t.Fatalf("expected default http port 80, got %s", target.Port)
	}
}
