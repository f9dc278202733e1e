package monitoring

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/gsreplay/gs"
	"github.com/sarchlab/gsreplay/hooking"
	"github.com/sarchlab/gsreplay/renderer"
	"github.com/sarchlab/gsreplay/replay"
	"github.com/sarchlab/gsreplay/txlog"
)

type sampleObject struct {
	Frames uint64
	Name   string
	Inner  *sampleObject
}

func newLoadedDriver() *replay.Driver {
	h, _ := gs.NewHeader(7, nil, make([]byte, gs.RegisterBankSize))
	l := txlog.New(h)
	l.Append(gs.NewVSync(0))

	d := replay.MakeBuilder().
		WithRenderer(renderer.NewNull()).
		WithLogger(log.New(GinkgoWriter, "", 0)).
		Build()
	Expect(d.Load(l)).To(Succeed())

	return d
}

var _ = Describe("Monitor", func() {
	var (
		m       *Monitor
		handler http.Handler
	)

	BeforeEach(func() {
		m = NewMonitor()
		handler = m.Handler()
	})

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	It("should refuse low port numbers", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should answer 503 without a driver", func() {
		Expect(get("/api/status").Code).To(Equal(http.StatusServiceUnavailable))
		Expect(get("/api/pause").Code).To(Equal(http.StatusServiceUnavailable))
	})

	It("should report the driver status", func() {
		m.RegisterDriver(newLoadedDriver())

		rec := get("/api/status")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp statusRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.State).To(Equal("loaded"))
		Expect(rsp.Paused).To(BeFalse())
	})

	It("should pause and continue the driver", func() {
		d := newLoadedDriver()
		m.RegisterDriver(d)

		Expect(get("/api/pause").Code).To(Equal(http.StatusOK))
		Expect(d.IsPaused()).To(BeTrue())

		Expect(get("/api/continue").Code).To(Equal(http.StatusOK))
		Expect(d.IsPaused()).To(BeFalse())
	})

	It("should list progress bars", func() {
		p := NewFrameProgress(m, "replay", 4)
		p.Func(hooking.HookCtx{Pos: replay.HookPosFrame})

		rec := get("/api/progress")

		var bars []progressRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("replay"))
		Expect(bars[0].Total).To(Equal(uint64(4)))
		Expect(bars[0].Finished).To(Equal(uint64(1)))
		Expect(p.Bar().Percent()).To(BeNumerically("~", 25))

		p.Func(hooking.HookCtx{Pos: replay.HookPosReplayEnd})

		Expect(get("/api/progress").Body.String()).To(Equal("[]"))
	})

	It("should report process resources", func() {
		rec := get("/api/resource")

		Expect(rec.Code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(rec.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should list and serialize objects", func() {
		m.RegisterObject("b", &sampleObject{})
		m.RegisterObject("a", &sampleObject{Frames: 3, Name: "null"})

		Expect(get("/api/objects").Body.String()).To(Equal(`["a","b"]`))

		rec := get("/api/object/a")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))

		Expect(get("/api/object/c").Code).To(Equal(http.StatusNotFound))
	})

	It("should serialize a field", func() {
		m.RegisterObject("a", &sampleObject{
			Inner: &sampleObject{Name: "inner"},
		})

		req, _ := json.Marshal(fieldReq{ObjectName: "a", FieldName: "Inner"})
		rec := get("/api/field/" + url.PathEscape(string(req)))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should reject a malformed field request", func() {
		Expect(get("/api/field/" + url.PathEscape("{")).Code).
			To(Equal(http.StatusBadRequest))
	})
})
