package urlclean

import "testing"

func TestClean_StripsOnlyTrackingParams(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://example.com/a?utm_source=x&id=7&utm_medium=y", "https://example.com/a?id=7"},
		{"https://example.com/?gclid=abc&fbclid=def", "https://example.com/"},
		{"https://example.com/p?b=2&_ga=1.2&a=1&_gl=z&ref_src=twsrc", "https://example.com/p?b=2&a=1"},
		{"https://example.com/p?q=hello%20world&utm_campaign=c", "https://example.com/p?q=hello%20world"},
		{"https://example.com/p?page=2#section", "https://example.com/p?page=2#section"},
		{"https://example.com/plain", "https://example.com/plain"},
		{"https://example.com/p?utm%5Fsource=x&keep=1", "https://example.com/p?keep=1"},
	}
	for _, tc := range cases {
		got := Clean(tc.in)
		if got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"https://example.com/a?utm_source=x&id=7",
		"/url?q=https://example.org/x%3Fa%3D1%26utm_term%3Dq&sa=U&ved=abc",
		"https://example.com/caf%C3%A9?x=a+b&y=%2F",
		"https://example.com/path with space?k=v",
		"not a url at all",
		"https://example.com/?",
		"/url?q=%2Furl%3Fq%3Dhttps%3A%2F%2Fx.com%2F",
		"/url?q=%2Furl%3Fq%3D%252Furl%253Fq%253Dhttps%253A%252F%252Fy.com%252F",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestClean_UnwrapsGoogleRedirect(t *testing.T) {
	got := Clean("/url?q=https://example.org/page%3Fid%3D3%26utm_source%3Dgoogle&sa=U&ved=2ahUK&usg=AOv")
	if got != "https://example.org/page?id=3" {
		t.Fatalf("unexpected unwrap result: %q", got)
	}
}

func TestClean_UnwrapsNestedRedirects(t *testing.T) {
	if got := Clean("/url?q=%2Furl%3Fq%3Dhttps%3A%2F%2Fx.com%2F"); got != "https://x.com/" {
		t.Fatalf("unexpected nested unwrap result: %q", got)
	}
}

func TestClean_RedirectWithoutTargetKeepsOriginal(t *testing.T) {
	in := "/url?sa=U&ved=2ahUK"
	if got := Clean(in); got != in {
		t.Fatalf("expected original %q, got %q", in, got)
	}
	bad := "/url?q=%zz"
	if got := Clean(bad); got != bad {
		t.Fatalf("expected undecodable redirect to pass through, got %q", got)
	}
}

func TestClean_UnparseableReturnedAsIs(t *testing.T) {
	in := "http://[::1"
	if got := Clean(in); got != in {
		t.Fatalf("expected passthrough, got %q", got)
	}
	if got := Clean(""); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestCleaner_CustomRedirect(t *testing.T) {
	c := Cleaner{Redirects: []Redirect{{Prefix: "//duckduckgo.com/l/?", Param: "uddg"}}}
	got := c.Clean("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F%3Futm_medium%3Dx&rut=abc")
	if got != "https://go.dev/doc/" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestOwnedBy(t *testing.T) {
	hosts := []string{"google.com"}
	if !OwnedBy("https://www.google.com/search?q=x", hosts) {
		t.Fatalf("expected www.google.com to be owned")
	}
	if !OwnedBy("https://maps.google.com/", hosts) {
		t.Fatalf("expected subdomain to be owned")
	}
	if OwnedBy("https://notgoogle.com/", hosts) {
		t.Fatalf("did not expect notgoogle.com to be owned")
	}
	if OwnedBy("/search?q=x", hosts) {
		t.Fatalf("relative urls are never owned")
	}
}

func TestKey_NormalizesHostAndFragment(t *testing.T) {
	a := Key("https://EXAMPLE.com/page?id=1#section")
	b := Key("https://example.com/page?id=1")
	if a != b {
		t.Fatalf("expected equal keys, got %q and %q", a, b)
	}
	if Key("https://example.com/Page") == Key("https://example.com/page") {
		t.Fatalf("paths are case-sensitive")
	}
}
