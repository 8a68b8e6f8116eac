package avs

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/saker-ai/avs-device/internal/transport/avs/codec"
)

const (
	capabilitiesPath = "/v1/devices/@self/capabilities"
	dcBoundary       = "dc-boundary"
	respBoundary     = "resp-boundary"
)

type recordedEvent struct {
	Event struct {
		Header  Header          `json:"header"`
		Payload json.RawMessage `json:"payload"`
	} `json:"event"`
	Context []struct {
		Header  Header          `json:"header"`
		Payload json.RawMessage `json:"payload"`
	} `json:"context"`
	Audio []byte `json:"-"`
}

// fakeAVS is an httptest AVS gateway.
type fakeAVS struct {
	srv  *httptest.Server
	done chan struct{}

	mu              sync.Mutex
	events          []recordedEvent
	capabilities    int
	pings           int
	pingStatus      int
	protos          []int
	downchannel     string
	downchannelOpen []time.Time
	eventPosted     []time.Time
	eventReply      func(name string) (string, []byte)
}

func newFakeAVS(t *testing.T) *fakeAVS {
	t.Helper()
	f := &fakeAVS{
		done:       make(chan struct{}),
		pingStatus: http.StatusNoContent,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	t.Cleanup(func() { close(f.done) })
	return f
}

// newH2CFakeAVS serves the fake gateway over cleartext HTTP/2.
func newH2CFakeAVS(t *testing.T) *fakeAVS {
	t.Helper()
	f := &fakeAVS{
		done:       make(chan struct{}),
		pingStatus: http.StatusNoContent,
	}
	f.srv = httptest.NewServer(h2c.NewHandler(http.HandlerFunc(f.serve), &http2.Server{}))
	t.Cleanup(f.srv.Close)
	t.Cleanup(func() { close(f.done) })
	return f
}

func (f *fakeAVS) config() Config {
	return Config{
		Endpoint:         f.srv.URL,
		CapabilitiesURL:  f.srv.URL + capabilitiesPath,
		EventRetry:       RetryPolicy{Attempts: 3, InitialInterval: time.Millisecond, Multiplier: 1.1},
		DownchannelRetry: RetryPolicy{Attempts: 10, InitialInterval: 20 * time.Millisecond, Multiplier: 1.1},
	}
}

func (f *fakeAVS) collaborators() Collaborators {
	return Collaborators{
		Tokens:     StaticToken("device-token"),
		HTTPClient: f.srv.Client(),
	}
}

func (f *fakeAVS) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.protos = append(f.protos, r.ProtoMajor)
	f.mu.Unlock()
	if r.Header.Get("Authorization") != "Bearer device-token" {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	switch {
	case r.Method == http.MethodPut && r.URL.Path == capabilitiesPath:
		f.mu.Lock()
		f.capabilities++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == directivesPath:
		f.serveDownchannel(w, r)
	case r.Method == http.MethodPost && r.URL.Path == eventsPath:
		f.serveEvent(w, r)
	case r.Method == http.MethodGet && r.URL.Path == pingPath:
		f.mu.Lock()
		f.pings++
		status := f.pingStatus
		f.mu.Unlock()
		w.WriteHeader(status)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAVS) serveDownchannel(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.downchannelOpen = append(f.downchannelOpen, time.Now())
	body := f.downchannel
	f.mu.Unlock()

	w.Header().Set("Content-Type", "multipart/related; boundary="+dcBoundary+"; type=application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	select {
	case <-r.Context().Done():
	case <-f.done:
	}
}

func (f *fakeAVS) serveEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	parts, err := codec.Decode(body, codec.Boundary)
	if err != nil || len(parts) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var ev recordedEvent
	if err := json.Unmarshal(parts[0].Body, &ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(parts) > 1 {
		ev.Audio = parts[1].Body
	}

	f.mu.Lock()
	f.events = append(f.events, ev)
	f.eventPosted = append(f.eventPosted, time.Now())
	reply := f.eventReply
	f.mu.Unlock()

	if reply == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	contentType, payload := reply(ev.Event.Header.Name)
	if payload == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (f *fakeAVS) recorded() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedEvent(nil), f.events...)
}

// multipartBody frames JSON and binary parts like an AVS response.
type multipartBody struct {
	boundary string
	b        strings.Builder
}

func newMultipartBody(boundary string) *multipartBody {
	return &multipartBody{boundary: boundary}
}

func (m *multipartBody) json(body string) *multipartBody {
	m.b.WriteString("--" + m.boundary + "\r\n")
	m.b.WriteString("Content-Type: application/json; charset=UTF-8\r\n\r\n")
	m.b.WriteString(body)
	m.b.WriteString("\r\n")
	return m
}

func (m *multipartBody) binary(contentID string, body []byte) *multipartBody {
	m.b.WriteString("--" + m.boundary + "\r\n")
	m.b.WriteString("Content-Type: application/octet-stream\r\n")
	m.b.WriteString("Content-ID: <" + contentID + ">\r\n\r\n")
	m.b.Write(body)
	m.b.WriteString("\r\n")
	return m
}

// open leaves the stream open after the last part.
func (m *multipartBody) open() string {
	return m.b.String() + "--" + m.boundary + "\r\n"
}

func (m *multipartBody) closed() []byte {
	return []byte(m.b.String() + "--" + m.boundary + "--\r\n")
}

func speakDirective(caption, token string) string {
	return `{"directive":{"header":{"namespace":"SpeechSynthesizer","name":"Speak","messageId":"m1","dialogRequestId":"d1"},` +
		`"payload":{"caption":"` + caption + `","token":"` + token + `","format":"AUDIO_MPEG"}}}`
}

const outOfSkillDirective = `{"directive":{"header":{"namespace":"SkillDebugger","name":"Exception"},"payload":{"code":"UNAUTHORIZED_DEBUGGING_INFO_ACCESS"}}}`

const skillExecutionDirective = `{"directive":{"header":{"namespace":"SkillDebugger","name":"CaptureDebuggingInfo"},"payload":{"type":"SkillExecutionInfo","content":{"invocationRequest":{"body":{"request":{"type":"IntentRequest"}}},"invocationResponse":{"body":{"response":{"shouldEndSession":true}}}}}}}`

const consideredIntentsDirective = `{"directive":{"header":{"namespace":"SkillDebugger","name":"CaptureDebuggingInfo"},"payload":{"type":"ConsideredIntents","content":{"intents":[{"name":"HelloIntent"}]}}}}`
