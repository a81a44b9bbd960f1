package peripheral_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/hapble/peripheral/mocks"
	"github.com/hapble/peripheral/pkg/gatt"
	"github.com/hapble/peripheral/pkg/peripheral"
	"github.com/hapble/peripheral/pkg/protocol"
)

var _ = Describe("Manager", func() {
	var (
		ctrl     *gomock.Controller
		stack    *mocks.Stack
		delegate *mocks.Delegate
		handler  func(peripheral.Event)
		initDone func(error)
		ready    bool
		m        *peripheral.Manager
	)

	BeforeEach(func() {
		ready = false
		ctrl = gomock.NewController(GinkgoT())
		stack = mocks.NewStack(ctrl)
		delegate = mocks.NewDelegate(ctrl)
		stack.EXPECT().SetEventHandler(gomock.Any()).Do(func(h func(peripheral.Event)) {
			handler = h
		})
		stack.EXPECT().Init(gomock.Any()).Do(func(done func(error)) {
			initDone = done
		})
		m = peripheral.New(stack, peripheral.Options{OnReady: func() { ready = true }})
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	Describe("initialization", func() {
		It("runs OnReady once the stack is up", func() {
			Expect(ready).To(BeFalse())
			initDone(nil)
			Expect(ready).To(BeTrue())
		})

		It("does not run OnReady when the stack fails", func() {
			initDone(errors.New("hci0: no such device"))
			Expect(ready).To(BeFalse())
		})
	})

	Describe("SetDelegate", func() {
		It("shuts the stack down when the delegate is cleared", func() {
			m.SetDelegate(delegate)
			stack.EXPECT().Shutdown().Return(errors.New("already down"))
			m.SetDelegate(nil)
		})
	})

	Describe("device identity", func() {
		It("records address and name", func() {
			m.SetDeviceAddress(peripheral.DeviceAddress{0x66, 0x55, 0x44, 0x33, 0x22, 0x11})
			m.SetDeviceName("Lamp")
			Expect(m.DeviceAddress().String()).To(Equal("11:22:33:44:55:66"))
			Expect(m.DeviceName()).To(Equal("Lamp"))
		})
	})

	Describe("PublishService", func() {
		It("submits the open slot range as one service", func() {
			_, err := m.AddCharacteristic(nameType, gatt.PropRead, []byte("Lamp"))
			Expect(err).NotTo(HaveOccurred())
			_, err = m.AddCharacteristic(pairingType, gatt.PropRead|gatt.PropWrite|gatt.PropNotify, nil)
			Expect(err).NotTo(HaveOccurred())
			_, err = m.AddDescriptor(instanceType, []byte{0x02, 0x00})
			Expect(err).NotTo(HaveOccurred())

			stack.EXPECT().AddService(gomock.Any()).DoAndReturn(func(svc *peripheral.StackService) error {
				Expect(svc.Type).To(Equal(serviceType))
				Expect(svc.Characteristics).To(HaveLen(2))
				Expect(svc.Characteristics[0].Dynamic()).To(BeFalse())
				Expect(svc.Characteristics[1].Descriptors).To(HaveLen(1))
				svc.Characteristics[0].ValueHandle = 0x0010
				svc.Characteristics[1].ValueHandle = 0x0012
				svc.Characteristics[1].Descriptors[0].Handle = 0x0013
				svc.Characteristics[1].Descriptors = append(svc.Characteristics[1].Descriptors,
					&peripheral.StackDescriptor{Type: gatt.ClientCharacteristicConfigUUID, Handle: 0x0014})
				return nil
			})
			handles, err := m.PublishService(serviceType)
			Expect(err).NotTo(HaveOccurred())
			Expect(handles).To(Equal([]peripheral.AttributeHandles{
				{Slot: 0, Value: 0x0010},
				{Slot: 1, Value: 0x0012, Instance: 0x0013, CCCD: 0x0014},
			}))
		})

		It("reports a rejected service as out of resources", func() {
			m.AddCharacteristic(nameType, gatt.PropRead, nil)
			stack.EXPECT().AddService(gomock.Any()).Return(errors.New("database full"))
			_, err := m.PublishService(serviceType)
			Expect(errors.Is(err, protocol.ErrOutOfResources)).To(BeTrue())
		})
	})

	Describe("connection notifications", func() {
		BeforeEach(func() {
			m.SetDelegate(delegate)
			m.PublishServices()
		})

		It("reports a subscribing central as connected", func() {
			delegate.EXPECT().HandleConnectedCentral(gatt.ConnectionHandle(0x40))
			handler(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 0x12})
			handler(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 0x15})
			Expect(m.Connection()).To(Equal(gatt.ConnectionHandle(0x40)))
		})

		It("disconnects the previous central before connecting a new one", func() {
			gomock.InOrder(
				delegate.EXPECT().HandleConnectedCentral(gatt.ConnectionHandle(0x40)),
				delegate.EXPECT().HandleDisconnectedCentral(gatt.ConnectionHandle(0x40)),
				delegate.EXPECT().HandleConnectedCentral(gatt.ConnectionHandle(0x41)),
				delegate.EXPECT().HandleDisconnectedCentral(gatt.ConnectionHandle(0x41)),
			)
			handler(peripheral.SubscriptionEnabled{Conn: 0x40, Attr: 0x12})
			handler(peripheral.SubscriptionEnabled{Conn: 0x41, Attr: 0x12})
			handler(peripheral.DisconnectionComplete{Conn: 0x41, Reason: 0x13})
			Expect(m.Connection()).To(BeZero())
		})

		It("forces a disconnect when the delegate rejects a read", func() {
			gomock.InOrder(
				delegate.EXPECT().HandleConnectedCentral(gatt.ConnectionHandle(0x40)),
				delegate.EXPECT().HandleReadRequest(gatt.ConnectionHandle(0x40), gatt.Handle(0x12), gomock.Any()).
					Return(0, protocol.ErrInvalidState),
				delegate.EXPECT().HandleDisconnectedCentral(gatt.ConnectionHandle(0x40)),
			)
			_, status := m.HandleRead(0x40, 0x12, 0)
			Expect(status).To(Equal(gatt.StatusInsufficientResources))
		})

		It("hands the delegate a buffer of the maximum attribute size", func() {
			delegate.EXPECT().HandleConnectedCentral(gomock.Any())
			delegate.EXPECT().HandleReadRequest(gomock.Any(), gomock.Any(), gomock.Len(gatt.MaxAttributeValueLength)).
				DoAndReturn(func(_ gatt.ConnectionHandle, _ gatt.Handle, buf []byte) (int, error) {
					return copy(buf, "value"), nil
				})
			value, status := m.HandleRead(0x40, 0x12, 0)
			Expect(status).To(Equal(gatt.StatusSuccess))
			Expect(string(value)).To(Equal("value"))
		})
	})

	Describe("SendHandleValueIndication", func() {
		It("writes the value to the central", func() {
			stack.EXPECT().WriteToCentral(gatt.ConnectionHandle(0x40), gatt.Handle(0x12), []byte{0x01}).Return(nil)
			Expect(m.SendHandleValueIndication(0x40, 0x12, []byte{0x01})).To(Succeed())
		})

		It("reports stack failures as invalid state", func() {
			stack.EXPECT().WriteToCentral(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("not subscribed"))
			err := m.SendHandleValueIndication(0x40, 0x12, []byte{0x01})
			Expect(errors.Is(err, protocol.ErrInvalidState)).To(BeTrue())
		})
	})

	It("rejects unknown events", func() {
		Expect(func() { handler(nil) }).To(Panic())
	})
})
