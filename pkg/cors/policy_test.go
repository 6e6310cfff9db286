package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestPolicy(t *testing.T, opts Options) *Policy {
	t.Helper()
	p, err := NewPolicy(opts)
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	return p
}

func defaultOptions() Options {
	return Options{
		AllowedOrigins:   []string{"https://app.example.com"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "apikey"},
		AllowCredentials: true,
		MaxAge:           86400,
	}
}

func TestNewPolicy_Validation(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "valid", opts: defaultOptions()},
		{name: "wildcard", opts: Options{AllowedOrigins: []string{"*"}}},
		{name: "no origins", opts: Options{}, wantErr: true},
		{name: "empty origin", opts: Options{AllowedOrigins: []string{" "}}, wantErr: true},
		{name: "trailing slash", opts: Options{AllowedOrigins: []string{"https://a.example/"}}, wantErr: true},
		{name: "negative max age", opts: Options{AllowedOrigins: []string{"*"}, MaxAge: -1}, wantErr: true},
		{name: "max age too large", opts: Options{AllowedOrigins: []string{"*"}, MaxAge: maxMaxAge + 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPolicy(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPolicy() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPolicy_EchoOrigin(t *testing.T) {
	tests := []struct {
		name        string
		origins     []string
		credentials bool
		origin      string
		want        string
		wantOK      bool
	}{
		{"listed with credentials", []string{"https://a.example"}, true, "https://a.example", "https://a.example", true},
		{"listed without credentials", []string{"https://a.example"}, false, "https://a.example", "https://a.example", true},
		{"wildcard with credentials echoes literal", []string{"*"}, true, "https://b.example", "https://b.example", true},
		{"wildcard without credentials", []string{"*"}, false, "https://b.example", "*", true},
		{"not listed", []string{"https://a.example"}, true, "https://evil.example", "", false},
		{"absent", []string{"*"}, false, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestPolicy(t, Options{AllowedOrigins: tt.origins, AllowCredentials: tt.credentials})
			got, ok := p.EchoOrigin(tt.origin)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("EchoOrigin(%q) = (%q, %v), want (%q, %v)", tt.origin, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestPolicy_EvaluatePreflight(t *testing.T) {
	p := newTestPolicy(t, defaultOptions())

	t.Run("allowed origin", func(t *testing.T) {
		d := p.EvaluatePreflight("https://app.example.com", "POST", []string{"x-custom"})
		if !d.Allowed() {
			t.Fatalf("Decision = %v, want allow", d.Decision)
		}
		want := map[string]string{
			HeaderAllowOrigin:      "https://app.example.com",
			HeaderAllowMethods:     "GET, POST, OPTIONS",
			HeaderAllowHeaders:     "Content-Type, Authorization, apikey",
			HeaderMaxAge:           "86400",
			HeaderAllowCredentials: "true",
			HeaderVary:             "Origin",
		}
		for k, v := range want {
			if got := d.Header.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
	})

	t.Run("rejected origin carries no CORS headers", func(t *testing.T) {
		d := p.EvaluatePreflight("https://evil.example", "GET", nil)
		if d.Allowed() {
			t.Fatal("Decision = allow, want reject")
		}
		if len(d.Header) != 0 {
			t.Errorf("Header = %v, want empty", d.Header)
		}
	})

	t.Run("absent origin", func(t *testing.T) {
		if d := p.EvaluatePreflight("", "GET", nil); d.Allowed() {
			t.Error("Decision = allow for empty origin, want reject")
		}
	})

	t.Run("wildcard without credentials omits vary", func(t *testing.T) {
		open := newTestPolicy(t, Options{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET"}})
		d := open.EvaluatePreflight("https://any.example", "GET", nil)
		if got := d.Header.Get(HeaderAllowOrigin); got != "*" {
			t.Errorf("%s = %q, want *", HeaderAllowOrigin, got)
		}
		if d.Header.Get(HeaderVary) != "" {
			t.Errorf("Vary = %q, want empty", d.Header.Get(HeaderVary))
		}
		if d.Header.Get(HeaderAllowCredentials) != "" {
			t.Error("credentials header set without credentials enabled")
		}
		if d.Header.Get(HeaderMaxAge) != "" {
			t.Error("max age header set with zero max age")
		}
	})
}

func TestPolicy_AnnotateResponse(t *testing.T) {
	t.Run("keeps existing headers", func(t *testing.T) {
		p := newTestPolicy(t, defaultOptions())
		in := http.Header{}
		in.Add("Content-Type", "application/json")
		in.Add("Set-Cookie", "a=1")
		in.Add("Set-Cookie", "b=2")
		in.Set(HeaderVary, "Accept-Encoding")

		out := p.AnnotateResponse("https://app.example.com", in)

		if got := out.Values("Set-Cookie"); len(got) != 2 || got[0] != "a=1" || got[1] != "b=2" {
			t.Errorf("Set-Cookie = %v, want [a=1 b=2]", got)
		}
		if got := out.Values(HeaderVary); len(got) != 2 || got[0] != "Accept-Encoding" || got[1] != "Origin" {
			t.Errorf("Vary = %v, want [Accept-Encoding Origin]", got)
		}
		if got := out.Get(HeaderAllowOrigin); got != "https://app.example.com" {
			t.Errorf("%s = %q", HeaderAllowOrigin, got)
		}
		if got := out.Get(HeaderAllowCredentials); got != "true" {
			t.Errorf("%s = %q, want true", HeaderAllowCredentials, got)
		}
		if out.Get(HeaderExposeHeaders) != "" {
			t.Error("expose header set without exposed headers configured")
		}
		if in.Get(HeaderAllowOrigin) != "" {
			t.Error("AnnotateResponse mutated its input")
		}
	})

	t.Run("replaces upstream CORS values", func(t *testing.T) {
		p := newTestPolicy(t, defaultOptions())
		in := http.Header{}
		in.Set(HeaderAllowOrigin, "*")
		in.Set(HeaderVary, "Origin")

		out := p.AnnotateResponse("https://app.example.com", in)
		if got := out.Values(HeaderAllowOrigin); len(got) != 1 || got[0] != "https://app.example.com" {
			t.Errorf("%s = %v", HeaderAllowOrigin, got)
		}
		if got := out.Values(HeaderVary); len(got) != 1 {
			t.Errorf("Vary = %v, want a single Origin entry", got)
		}
	})

	t.Run("exposed headers in order", func(t *testing.T) {
		opts := defaultOptions()
		opts.ExposedHeaders = []string{"Content-Range", "X-Total-Count"}
		p := newTestPolicy(t, opts)

		out := p.AnnotateResponse("https://app.example.com", nil)
		if got := out.Get(HeaderExposeHeaders); got != "Content-Range, X-Total-Count" {
			t.Errorf("%s = %q", HeaderExposeHeaders, got)
		}
	})

	t.Run("absent origin adds nothing", func(t *testing.T) {
		p := newTestPolicy(t, defaultOptions())
		in := http.Header{"Content-Type": {"text/plain"}}
		out := p.AnnotateResponse("", in)
		if len(out) != 1 {
			t.Errorf("headers = %v, want only Content-Type", out)
		}
	})

	t.Run("disallowed origin adds nothing", func(t *testing.T) {
		p := newTestPolicy(t, defaultOptions())
		out := p.AnnotateResponse("https://evil.example", http.Header{})
		if out.Get(HeaderAllowOrigin) != "" {
			t.Error("Access-Control-Allow-Origin set for disallowed origin")
		}
	})
}

func TestIsPreflight(t *testing.T) {
	tests := []struct {
		method string
		origin string
		want   bool
	}{
		{http.MethodOptions, "https://a.example", true},
		{http.MethodOptions, "", false},
		{http.MethodGet, "https://a.example", false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(tt.method, "/rest/v1/items", nil)
		if tt.origin != "" {
			r.Header.Set(HeaderOrigin, tt.origin)
		}
		if got := IsPreflight(r); got != tt.want {
			t.Errorf("IsPreflight(%s, %q) = %v, want %v", tt.method, tt.origin, got, tt.want)
		}
	}
}
