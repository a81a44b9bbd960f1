package peripheral_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/hapble/peripheral/mocks"
	"github.com/hapble/peripheral/pkg/peripheral"
)

var _ = Describe("Advertising", func() {
	var (
		ctrl    *gomock.Controller
		stack   *mocks.Stack
		m       *peripheral.Manager
		handler func(peripheral.Event)
	)

	adv := []byte{0x02, 0x01, 0x06, 0x03, 0xff, 0x4c, 0x00}
	scanResponse := []byte{0x05, 0x09, 'L', 'a', 'm', 'p'}
	params := peripheral.AdvertisingParameters{
		Type:     peripheral.AdvertisingConnectableUndirected,
		Interval: 100 * time.Millisecond,
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		stack = mocks.NewStack(ctrl)
		stack.EXPECT().SetEventHandler(gomock.Any()).Do(func(h func(peripheral.Event)) {
			handler = h
		})
		stack.EXPECT().Init(gomock.Any())
		m = peripheral.New(stack, peripheral.Options{})
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	start := func() {
		gomock.InOrder(
			stack.EXPECT().IsAdvertisingActive().Return(false),
			stack.EXPECT().SetAdvertisingPayload(adv).Return(nil),
			stack.EXPECT().SetScanResponse(scanResponse).Return(nil),
			stack.EXPECT().SetAdvertisingParameters(params).Return(nil),
			stack.EXPECT().StartAdvertising().Return(nil),
		)
		m.StartAdvertising(100*time.Millisecond, adv, scanResponse)
	}

	Describe("StartAdvertising", func() {
		It("starts connectable undirected advertising", func() {
			start()
			Expect(m.AdvertisingInterval()).To(Equal(100 * time.Millisecond))
		})

		It("stops active advertising first", func() {
			gomock.InOrder(
				stack.EXPECT().IsAdvertisingActive().Return(true),
				stack.EXPECT().StopAdvertising().Return(nil),
				stack.EXPECT().SetAdvertisingPayload(adv).Return(nil),
				stack.EXPECT().SetScanResponse(scanResponse).Return(nil),
				stack.EXPECT().SetAdvertisingParameters(params).Return(nil),
				stack.EXPECT().StartAdvertising().Return(nil),
			)
			m.StartAdvertising(100*time.Millisecond, adv, scanResponse)
		})

		It("leaves the scan response alone when none is given", func() {
			gomock.InOrder(
				stack.EXPECT().IsAdvertisingActive().Return(false),
				stack.EXPECT().SetAdvertisingPayload(adv).Return(nil),
				stack.EXPECT().SetAdvertisingParameters(params).Return(nil),
				stack.EXPECT().StartAdvertising().Return(nil),
			)
			m.StartAdvertising(100*time.Millisecond, adv, nil)
		})

		It("absorbs stack failures", func() {
			failure := errors.New("command disallowed")
			stack.EXPECT().IsAdvertisingActive().Return(false)
			stack.EXPECT().SetAdvertisingPayload(adv).Return(failure)
			stack.EXPECT().SetAdvertisingParameters(params).Return(failure)
			stack.EXPECT().StartAdvertising().Return(failure)
			m.StartAdvertising(100*time.Millisecond, adv, nil)
			Expect(m.AdvertisingInterval()).To(Equal(100 * time.Millisecond))
		})

		It("requires a positive interval and a payload", func() {
			Expect(func() { m.StartAdvertising(0, adv, nil) }).To(Panic())
			Expect(func() { m.StartAdvertising(time.Second, nil, nil) }).To(Panic())
		})
	})

	Describe("advertising rounds", func() {
		It("renews advertising with the same interval", func() {
			start()
			gomock.InOrder(
				stack.EXPECT().IsAdvertisingActive().Return(false),
				stack.EXPECT().SetAdvertisingParameters(params).Return(nil),
				stack.EXPECT().StartAdvertising().Return(nil),
			)
			handler(peripheral.AdvertisingEnded{})
		})

		It("does not renew advertising that is already active", func() {
			start()
			stack.EXPECT().IsAdvertisingActive().Return(true)
			handler(peripheral.AdvertisingEnded{})
		})

		It("does not renew after StopAdvertising", func() {
			start()
			gomock.InOrder(
				stack.EXPECT().IsAdvertisingActive().Return(true),
				stack.EXPECT().StopAdvertising().Return(nil),
			)
			m.StopAdvertising()
			Expect(m.AdvertisingInterval()).To(BeZero())
			handler(peripheral.AdvertisingEnded{})
		})

		It("does not renew after RemoveAllServices", func() {
			start()
			gomock.InOrder(
				stack.EXPECT().IsAdvertisingActive().Return(true),
				stack.EXPECT().StopAdvertising().Return(nil),
				stack.EXPECT().ResetServer().Return(nil),
			)
			m.RemoveAllServices()
			handler(peripheral.AdvertisingEnded{})
		})

		It("ignores rounds when advertising was never started", func() {
			handler(peripheral.AdvertisingEnded{})
		})
	})
})
