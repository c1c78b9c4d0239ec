package imagesource

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockDevice is a mock implementation of Device
type mockDevice struct {
	openErr error
	stream  *mockStream
	opens   int
}

func (m *mockDevice) Open(ctx context.Context) (Stream, error) {
	m.opens++
	if m.openErr != nil {
		return nil, m.openErr
	}
	return m.stream, nil
}

// mockStream is a mock implementation of Stream
type mockStream struct {
	frame    image.Image
	frameErr error
	closeErr error
	closes   int
}

func (m *mockStream) Frame() (image.Image, error) {
	if m.frameErr != nil {
		return nil, m.frameErr
	}
	return m.frame, nil
}

func (m *mockStream) Close() error {
	m.closes++
	return m.closeErr
}

func solidFrame(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return img
}

var _ = Describe("CameraSession", func() {
	var (
		stream *mockStream
		device *mockDevice
	)

	BeforeEach(func() {
		stream = &mockStream{frame: solidFrame(1280, 720)}
		device = &mockDevice{stream: stream}
	})

	Describe("StartCamera", func() {
		When("the device opens", func() {
			It("returns an active session", func() {
				session, err := StartCamera(context.Background(), device)
				Expect(err).NotTo(HaveOccurred())
				Expect(session.Active()).To(BeTrue())
			})
		})

		When("permission is denied", func() {
			BeforeEach(func() {
				device.openErr = errors.New("NotAllowedError")
			})

			It("returns ErrDeviceUnavailable", func() {
				_, err := StartCamera(context.Background(), device)
				Expect(err).To(MatchError(ErrDeviceUnavailable))
				Expect(err.Error()).To(ContainSubstring("NotAllowedError"))
			})
		})

		When("no device is configured", func() {
			It("returns ErrDeviceUnavailable", func() {
				_, err := StartCamera(context.Background(), nil)
				Expect(err).To(MatchError(ErrDeviceUnavailable))
			})
		})
	})

	Describe("CaptureFrame", func() {
		var session *CameraSession

		BeforeEach(func() {
			var err error
			session, err = StartCamera(context.Background(), device)
			Expect(err).NotTo(HaveOccurred())
		})

		It("encodes the frame as a 640x480 JPEG", func() {
			img, err := session.CaptureFrame()
			Expect(err).NotTo(HaveOccurred())
			Expect(img.MimeType).To(Equal("image/jpeg"))

			decoded, err := jpeg.Decode(bytes.NewReader(img.Data))
			Expect(err).NotTo(HaveOccurred())
			Expect(decoded.Bounds().Dx()).To(Equal(FrameWidth))
			Expect(decoded.Bounds().Dy()).To(Equal(FrameHeight))
		})

		It("upscales small frames to the target resolution", func() {
			stream.frame = solidFrame(320, 240)
			img, err := session.CaptureFrame()
			Expect(err).NotTo(HaveOccurred())

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Width).To(Equal(FrameWidth))
			Expect(cfg.Height).To(Equal(FrameHeight))
		})

		When("the stream fails to deliver a frame", func() {
			BeforeEach(func() {
				stream.frameErr = ErrNoFrame
			})

			It("returns ErrDeviceUnavailable", func() {
				_, err := session.CaptureFrame()
				Expect(err).To(MatchError(ErrDeviceUnavailable))
				Expect(err).To(MatchError(ErrNoFrame))
			})
		})

		When("the session is stopped", func() {
			BeforeEach(func() {
				session.Stop()
			})

			It("returns ErrDeviceUnavailable", func() {
				_, err := session.CaptureFrame()
				Expect(err).To(MatchError(ErrDeviceUnavailable))
			})
		})
	})

	Describe("Stop", func() {
		It("releases the device exactly once", func() {
			session, err := StartCamera(context.Background(), device)
			Expect(err).NotTo(HaveOccurred())

			session.Stop()
			session.Stop()
			session.Stop()

			Expect(stream.closes).To(Equal(1))
			Expect(session.Active()).To(BeFalse())
		})

		It("is safe on a nil session", func() {
			var session *CameraSession
			Expect(session.Stop).NotTo(Panic())
			Expect(session.Active()).To(BeFalse())
		})

		It("swallows release errors", func() {
			stream.closeErr = errors.New("device busy")
			session, err := StartCamera(context.Background(), device)
			Expect(err).NotTo(HaveOccurred())
			Expect(session.Stop).NotTo(Panic())
		})
	})
})

var _ = Describe("FeedDevice", func() {
	var device *FeedDevice

	BeforeEach(func() {
		device = NewFeedDevice(true)
	})

	When("permission has not been granted", func() {
		BeforeEach(func() {
			device.SetAvailable(false)
		})

		It("refuses to open", func() {
			_, err := StartCamera(context.Background(), device)
			Expect(err).To(MatchError(ErrDeviceUnavailable))
		})
	})

	It("holds an exclusive claim until stopped", func() {
		first, err := StartCamera(context.Background(), device)
		Expect(err).NotTo(HaveOccurred())

		_, err = StartCamera(context.Background(), device)
		Expect(err).To(MatchError(ErrDeviceUnavailable))

		first.Stop()
		Expect(device.Claimed()).To(BeFalse())

		second, err := StartCamera(context.Background(), device)
		Expect(err).NotTo(HaveOccurred())
		second.Stop()
	})

	It("drops frames pushed while unclaimed", func() {
		Expect(device.Push(solidFrame(10, 10))).To(BeFalse())
	})

	It("captures the latest pushed frame", func() {
		session, err := StartCamera(context.Background(), device)
		Expect(err).NotTo(HaveOccurred())
		defer session.Stop()

		_, err = session.CaptureFrame()
		Expect(err).To(MatchError(ErrNoFrame))

		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, solidFrame(800, 600), nil)).To(Succeed())
		accepted, err := device.PushEncoded(buf.Bytes())
		Expect(err).NotTo(HaveOccurred())
		Expect(accepted).To(BeTrue())

		img, err := session.CaptureFrame()
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Data).NotTo(BeEmpty())
	})

	It("rejects undecodable frames", func() {
		_, err := device.PushEncoded([]byte("not an image"))
		Expect(err).To(HaveOccurred())
	})
})
