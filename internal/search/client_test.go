package search

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hyperifyio/gosearch/internal/extract"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func (s *sleepRecorder) get() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func testProfile(base string) ProviderConfig {
	p := GoogleProfile()
	p.URLTemplate = base + "/search?gbv=1&num={count}&q={query}"
	p.AltURLTemplate = base + "/alt?q={query}&num={count}"
	return p
}

func resultsPage(n int) string {
	var b strings.Builder
	b.WriteString("<html><head><script>var tracking = 1;</script></head><body>")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div class="g"><a href="/url?q=https://site%d.example/&amp;sa=U"><h3>Result title %d</h3></a>`+
			`<div class="VwiC3b">A plain description for result %d that is long enough.</div></div>`, i, i, i)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func serve(t *testing.T, h http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newTestClient(srv *httptest.Server, rec *sleepRecorder, opts ...Option) *Client {
	base := []Option{WithHTTPClient(srv.Client()), WithSleep(rec.sleep)}
	return NewClient(testProfile(srv.URL), append(base, opts...)...)
}

func TestClient_SuccessfulSearch(t *testing.T) {
	var gotNum, gotQuery, gotUA string
	var gotConsent bool
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		gotNum, gotQuery = r.URL.Query().Get("num"), r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		if c, err := r.Cookie("CONSENT"); err == nil && c.Value == "PENDING+987" {
			gotConsent = true
		}
		_, _ = w.Write([]byte(resultsPage(3)))
	})
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("CEST", 2*3600))
	c := newTestClient(srv, &sleepRecorder{}, WithClock(func() time.Time { return fixed }))

	resp, err := c.Search(context.Background(), "  go language  ", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotNum != "15" || gotQuery != "go language" {
		t.Fatalf("unexpected request num=%q q=%q", gotNum, gotQuery)
	}
	if !strings.Contains(gotUA, "Firefox") || !gotConsent {
		t.Fatalf("expected provider headers and cookies, ua=%q consent=%v", gotUA, gotConsent)
	}
	if resp.Query != "go language" || resp.Source != "google" || resp.TotalCount != 3 || len(resp.Results) != 3 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.Timestamp.Equal(fixed) || resp.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp equal to clock, got %v", resp.Timestamp)
	}
	r0 := resp.Results[0]
	if r0.URL != "https://site0.example/" || r0.Title != "Result title 0" || !strings.Contains(r0.Snippet, "result 0") {
		t.Fatalf("unexpected first result: %+v", r0)
	}
}

func TestClient_LimitCapsResults(t *testing.T) {
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(resultsPage(5))) })
	resp, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TotalCount != 2 || len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp)
	}
}

func TestClient_EmptyQueryMakesNoRequest(t *testing.T) {
	srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) {})
	c := newTestClient(srv, &sleepRecorder{})
	for _, q := range []string{"", "   ", "\t\n"} {
		resp, err := c.Search(context.Background(), q, 5)
		if resp != nil || KindOf(err) != EmptyQuery {
			t.Fatalf("query %q: expected EmptyQuery, got resp=%v err=%v", q, resp, err)
		}
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestClient_CaptchaBlocksWithoutRetry(t *testing.T) {
	srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`<html><body><form id="captcha-form" action="/sorry"></form></body></html>`))
	})
	rec := &sleepRecorder{}
	_, err := newTestClient(srv, rec).Search(context.Background(), "q", 5)
	if KindOf(err) != Blocked {
		t.Fatalf("expected Blocked, got %v", err)
	}
	if err.Error() != "Search temporarily blocked. Please try again later." {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected exactly 1 request, got %d", n)
	}
	if len(rec.get()) != 0 {
		t.Fatalf("expected no sleeps, got %v", rec.get())
	}
}

func TestClient_ServerErrorsRetryWithBackoff(t *testing.T) {
	srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	rec := &sleepRecorder{}
	_, err := newTestClient(srv, rec).Search(context.Background(), "q", 5)
	if KindOf(err) != ProviderUnavailable {
		t.Fatalf("expected ProviderUnavailable, got %v", err)
	}
	if AsError(err).Provider != "google" {
		t.Fatalf("expected provider tag, got %+v", AsError(err))
	}
	if n := atomic.LoadInt32(calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
	if want := []time.Duration{time.Second, 2 * time.Second}; !reflect.DeepEqual(rec.get(), want) {
		t.Fatalf("expected delays %v, got %v", want, rec.get())
	}
}

func TestClient_RecoversAfterTransientStatus(t *testing.T) {
	var n int32
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(resultsPage(1)))
	})
	resp, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "q", 5)
	if err != nil || len(resp.Results) != 1 {
		t.Fatalf("expected recovery on second attempt, got resp=%+v err=%v", resp, err)
	}
}

func TestClient_TimeoutsUseFixedDelay(t *testing.T) {
	var trips int32
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		atomic.AddInt32(&trips, 1)
		return nil, &net.DNSError{Err: "i/o timeout", Name: r.URL.Host, IsTimeout: true}
	})}
	rec := &sleepRecorder{}
	c := NewClient(testProfile("http://search.invalid"), WithHTTPClient(hc), WithSleep(rec.sleep), WithMaxAttempts(4))
	_, err := c.Search(context.Background(), "q", 5)
	if KindOf(err) != Timeout {
		t.Fatalf("expected Timeout, got %v", err)
	}
	if n := atomic.LoadInt32(&trips); n != 4 {
		t.Fatalf("expected 4 attempts, got %d", n)
	}
	delays := rec.get()
	if len(delays) != 3 {
		t.Fatalf("expected 3 waits, got %v", delays)
	}
	for i := 1; i < len(delays); i++ {
		if delays[i] < delays[i-1] {
			t.Fatalf("delays must not decrease: %v", delays)
		}
	}
}

func TestClient_TransportErrorIsNetworkError(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	rec := &sleepRecorder{}
	c := NewClient(testProfile("http://search.invalid"), WithHTTPClient(hc), WithSleep(rec.sleep),
		WithBackoff(10*time.Millisecond, time.Millisecond))
	_, err := c.Search(context.Background(), "q", 5)
	if KindOf(err) != NetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}; !reflect.DeepEqual(rec.get(), want) {
		t.Fatalf("expected delays %v, got %v", want, rec.get())
	}
}

func TestClient_BackoffIsCapped(t *testing.T) {
	hc := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})}
	rec := &sleepRecorder{}
	c := NewClient(testProfile("http://search.invalid"), WithHTTPClient(hc), WithSleep(rec.sleep), WithMaxAttempts(70))
	if _, err := c.Search(context.Background(), "q", 5); KindOf(err) != NetworkError {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	delays := rec.get()
	if len(delays) != 69 {
		t.Fatalf("expected 69 waits, got %d", len(delays))
	}
	for i, d := range delays {
		if d <= 0 || d > MaxBackoff {
			t.Fatalf("wait %d out of range: %v", i, d)
		}
		if i > 0 && d < delays[i-1] {
			t.Fatalf("delay decreased at wait %d: %v -> %v", i, delays[i-1], d)
		}
	}
	if delays[len(delays)-1] != MaxBackoff {
		t.Fatalf("expected final wait %v, got %v", MaxBackoff, delays[len(delays)-1])
	}
	if d := NewClient(testProfile("http://x"), WithBackoff(time.Hour, time.Hour)).backoff(1); d != MaxBackoff {
		t.Fatalf("expected huge base delay capped, got %v", d)
	}
}

func TestClient_InvalidRequestIsNotRetried(t *testing.T) {
	rec := &sleepRecorder{}
	p := GoogleProfile()
	p.URLTemplate = "ftp://search.invalid/?q={query}"
	_, err := NewClient(p, WithSleep(rec.sleep)).Search(context.Background(), "q", 5)
	if KindOf(err) != InternalError {
		t.Fatalf("expected InternalError, got %v", err)
	}
	if len(rec.get()) != 0 {
		t.Fatalf("expected no retries, got %v", rec.get())
	}
}

func TestClient_CancelledWaitReturnsLastError(t *testing.T) {
	srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) })
	ctx, cancel := context.WithCancel(context.Background())
	c := newTestClient(srv, &sleepRecorder{}, WithSleep(func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}))
	_, err := c.Search(ctx, "q", 5)
	if KindOf(err) != ProviderUnavailable {
		t.Fatalf("expected last classified error, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestClient_DiagnosesEmptyPages(t *testing.T) {
	filler := strings.Repeat("<p>Lorem ipsum dolor sit amet consectetur.</p>", 30)
	cases := []struct {
		name string
		body string
		want ErrorKind
	}{
		{"no match", "<html><body><p>Your search - zzqx - did not match any documents.</p>" + filler + "</body></html>", NoMatch},
		{"blocked", "<html><body><p>Our systems have detected unusual traffic from your network.</p></body></html>", Blocked},
		{"truncated", "<html><body><div>", CorruptedResponse},
		{"garbage", "<html><body>" + strings.Repeat("\xff\xfe", 40) + filler + "</body></html>", CorruptedResponse},
		{"unrecognized layout", "<html><body>" + filler + "</body></html>", ExtractionFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(tc.body)) })
			_, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "zzqx", 5)
			if k := KindOf(err); k != tc.want {
				t.Fatalf("expected %v, got %v (%v)", tc.want, k, err)
			}
			if n := atomic.LoadInt32(calls); n != 1 {
				t.Fatalf("expected a single request, got %d", n)
			}
		})
	}
}

func TestClient_ExtractionFailedCarriesExcerpt(t *testing.T) {
	body := "<html><body>" + strings.Repeat("<p>Lorem ipsum dolor sit amet consectetur.</p>", 30) + "</body></html>"
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(body)) })
	_, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "q", 5)
	e := AsError(err)
	if e == nil || e.Kind != ExtractionFailed {
		t.Fatalf("expected ExtractionFailed, got %v", err)
	}
	if e.Detail == "" || len([]rune(e.Detail)) > 200 {
		t.Fatalf("expected bounded excerpt, got %d runes", len([]rune(e.Detail)))
	}
}

const enableJSPage = `<html><body><noscript><meta http-equiv="refresh" content="0;url=/httpservice/retry/enablejs?sei=x"></noscript>` +
	`<div>Please click <a href="/httpservice/retry/enablejs?sei=x">here</a> if you are not redirected.</div></body></html>`

func TestClient_ScriptingRequiredTriesAlternateURL(t *testing.T) {
	srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/alt" {
			_, _ = w.Write([]byte(resultsPage(2)))
			return
		}
		_, _ = w.Write([]byte(enableJSPage))
	})
	resp, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("expected alternate URL to succeed, got %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", resp)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

func TestClient_ScriptingRequiredWhenAlternateFails(t *testing.T) {
	srv, calls := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(enableJSPage)) })
	_, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "q", 5)
	if KindOf(err) != ScriptingRequired {
		t.Fatalf("expected ScriptingRequired, got %v", err)
	}
	if n := atomic.LoadInt32(calls); n != 2 {
		t.Fatalf("expected primary and alternate request, got %d", n)
	}
}

func TestClient_LenientRetryRescuesOverFilteredPage(t *testing.T) {
	page := `<html><body><div class="g"><a href="https://glossary.example/"><h3>Glossary of terms</h3></a></div></body></html>`
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(page)) })
	resp, err := newTestClient(srv, &sleepRecorder{}).Search(context.Background(), "glossary", 5)
	if err != nil {
		t.Fatalf("expected lenient pass to find the result, got %v", err)
	}
	if resp.Results[0].URL != "https://glossary.example/" {
		t.Fatalf("unexpected result %+v", resp.Results[0])
	}
}

type panicExtractor struct{}

func (panicExtractor) Extract(*goquery.Document) []extract.Hit { panic("boom") }

func TestClient_PanicBecomesInternalError(t *testing.T) {
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(resultsPage(1))) })
	c := newTestClient(srv, &sleepRecorder{})
	c.extractor = panicExtractor{}
	resp, err := c.Search(context.Background(), "q", 5)
	if resp != nil || KindOf(err) != InternalError {
		t.Fatalf("expected InternalError, got resp=%v err=%v", resp, err)
	}
	if AsError(err).Detail != "boom" {
		t.Fatalf("expected panic detail, got %+v", AsError(err))
	}
}

func TestClient_ConcurrentSearches(t *testing.T) {
	srv, _ := serve(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(resultsPage(4))) })
	c := newTestClient(srv, &sleepRecorder{})
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := c.Search(context.Background(), fmt.Sprintf("query %d", i), 3)
			if err != nil {
				errs <- err
				return
			}
			if len(resp.Results) != 3 || resp.Query != fmt.Sprintf("query %d", i) {
				errs <- fmt.Errorf("unexpected response %+v", resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestNewClient_DoesNotAliasProfile(t *testing.T) {
	p := GoogleProfile()
	c := NewClient(p)
	p.Headers["User-Agent"] = "changed"
	p.Markers.Captcha[0] = "changed"
	if c.cfg.Headers["User-Agent"] == "changed" || c.cfg.Markers.Captcha[0] == "changed" {
		t.Fatalf("client config aliases caller profile")
	}
}
