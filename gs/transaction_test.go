package gs

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Transaction", func() {
	It("should place path 1 payloads at the end of the scratch buffer", func() {
		t, err := NewTransfer(Path1, []byte{1, 2, 3, 4})

		Expect(err).NotTo(HaveOccurred())
		Expect(t.Data).To(HaveLen(Path1Capacity))
		Expect(t.Addr).To(Equal(uint32(0x3FFC)))
		Expect(t.Data[0x3FFC:]).To(Equal([]byte{1, 2, 3, 4}))
		Expect(t.Payload()).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should keep other paths unpadded", func() {
		t, err := NewTransfer(Path3, []byte{9, 8})

		Expect(err).NotTo(HaveOccurred())
		Expect(t.Addr).To(BeZero())
		Expect(t.Data).To(Equal([]byte{9, 8}))
		Expect(t.WireSize()).To(Equal(8))
	})

	It("should copy the payload", func() {
		payload := []byte{1}
		t, _ := NewTransfer(Path2, payload)
		payload[0] = 2

		Expect(t.Payload()).To(Equal([]byte{1}))
	})

	It("should reject oversize path 1 payloads and unknown paths", func() {
		_, err := NewTransfer(Path1, make([]byte, Path1Capacity+1))
		Expect(err).To(HaveOccurred())

		_, err = NewTransfer(Path(4), nil)
		Expect(err).To(HaveOccurred())
	})

	It("should require a full register bank", func() {
		_, err := NewRegisterBlockRestore(make([]byte, 16))
		Expect(err).To(HaveOccurred())

		_, err = NewHeader(0, nil, make([]byte, RegisterBankSize-1))
		Expect(err).To(HaveOccurred())
	})

	It("should name kinds and paths", func() {
		Expect(KindFIFORead.String()).To(Equal("FIFORead"))
		Expect(Kind(7).String()).To(Equal("Kind(7)"))
		Expect(Kind(7).Valid()).To(BeFalse())
		Expect(PathGeneric.String()).To(Equal("GENERIC"))
		Expect(NewVSync(1).String()).To(Equal("VSync(1)"))
	})
})
