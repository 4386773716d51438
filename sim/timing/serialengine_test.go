package timing

import (
	"errors"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gmeasure"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"
)

var _ = Describe("SerialEngine", func() {
	var (
		mockCtrl *gomock.Controller
		engine   *SerialEngine
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewSerialEngine()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	mockEvent := func(
		t VTimeInSec,
		handler Handler,
		secondary bool,
	) *MockEvent {
		evt := NewMockEvent(mockCtrl)
		evt.EXPECT().Time().Return(t).AnyTimes()
		evt.EXPECT().Handler().Return(handler).AnyTimes()
		evt.EXPECT().IsSecondary().Return(secondary).AnyTimes()

		return evt
	}

	It("should schedule events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		evt1 := mockEvent(4.0, handler1, false)
		evt2 := mockEvent(2.0, handler2, false)
		evt3 := mockEvent(3.0, handler1, false)
		evt4 := mockEvent(5.0, handler1, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2).Do(func(e Event) {
			engine.Schedule(evt3)
			engine.Schedule(evt4)
		})
		handleEvt3 := handler1.EXPECT().Handle(evt3).After(handleEvt2)
		handleEvt1 := handler1.EXPECT().Handle(evt1).After(handleEvt3)
		handler1.EXPECT().Handle(evt4).After(handleEvt1)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(Succeed())
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(5.0)))
	})

	It("should consider secondary events", func() {
		handler1 := NewMockHandler(mockCtrl)
		handler2 := NewMockHandler(mockCtrl)
		handler3 := NewMockHandler(mockCtrl)
		evt1 := mockEvent(2.0, handler1, true)
		evt2 := mockEvent(2.0, handler2, false)
		evt3 := mockEvent(2.0, handler3, false)

		handleEvt2 := handler2.EXPECT().Handle(evt2)
		handleEvt3 := handler3.EXPECT().Handle(evt3)
		handler1.EXPECT().
			Handle(evt1).
			After(handleEvt2).
			After(handleEvt3)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.Run()).To(Succeed())
	})

	It("should run a primary event scheduled by a secondary event", func() {
		handler := NewMockHandler(mockCtrl)
		secondary := mockEvent(1.0, handler, true)
		primary := mockEvent(1.5, handler, false)

		handleSecondary := handler.EXPECT().Handle(secondary).
			Do(func(e Event) { engine.Schedule(primary) })
		handler.EXPECT().Handle(primary).After(handleSecondary)

		engine.Schedule(secondary)

		Expect(engine.Run()).To(Succeed())
	})

	It("should stop and report the handler error", func() {
		handler := NewMockHandler(mockCtrl)
		evt1 := mockEvent(1.0, handler, false)
		evt2 := mockEvent(2.0, handler, false)
		failure := errors.New("handler failed")

		handler.EXPECT().Handle(evt1).Return(failure)

		engine.Schedule(evt1)
		engine.Schedule(evt2)

		Expect(engine.Run()).To(MatchError(failure))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(1.0)))
	})

	It("should panic when scheduling into the past", func() {
		handler := NewMockHandler(mockCtrl)
		later := mockEvent(2.0, handler, false)
		earlier := mockEvent(1.0, handler, false)

		handler.EXPECT().Handle(later)
		engine.Schedule(later)
		Expect(engine.Run()).To(Succeed())

		Expect(func() { engine.Schedule(earlier) }).To(Panic())
	})

	It("should count and log the handled events", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(log.TraceLevel)
		eventLogger := NewEventLogger(logger)
		engine.AcceptHook(eventLogger)

		handler := NewMockHandler(mockCtrl)
		handler.EXPECT().Handle(gomock.Any()).Times(3)

		engine.Schedule(mockEvent(1.0, handler, false))
		engine.Schedule(mockEvent(2.0, handler, true))
		engine.Schedule(mockEvent(3.0, handler, false))

		Expect(engine.Run()).To(Succeed())
		Expect(eventLogger.Count()).To(Equal(uint64(3)))
		Expect(logs.AllEntries()).To(HaveLen(3))
		Expect(logs.LastEntry().Data["time"]).To(Equal(3.0))
	})

	It("measure triggering speed", func() {
		experiment := gmeasure.NewExperiment("Serial Engine Triggering Speed")
		AddReportEntry(experiment.Name, experiment)

		experiment.MeasureDuration("runtime", func() {
			handler := NewMockHandler(mockCtrl)
			handler.EXPECT().Handle(gomock.Any()).AnyTimes()

			for i := 0; i < 10000; i++ {
				t := VTimeInSec(float64(rand.Uint64()%10) * 0.01)
				engine.Schedule(mockEvent(t, handler, rand.Uint32()%2 == 0))
			}

			Expect(engine.Run()).To(Succeed())
		})
	})
})
