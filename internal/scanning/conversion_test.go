package scanning

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/label-scan/internal/imagesource"
)

var _ = Describe("toPNG", func() {
	It("passes PNG data through untouched", func() {
		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())

		out, err := toPNG(&imagesource.AcquiredImage{Data: buf.Bytes(), MimeType: "image/png"})
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(buf.Bytes()))
	})

	It("converts JPEG to PNG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 6)), nil)).To(Succeed())

		out, err := toPNG(&imagesource.AcquiredImage{Data: buf.Bytes(), MimeType: "image/jpeg"})
		Expect(err).NotTo(HaveOccurred())

		cfg, err := png.DecodeConfig(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Width).To(Equal(8))
	})

	It("rejects unsupported data", func() {
		_, err := toPNG(&imagesource.AcquiredImage{Data: []byte("garbage"), MimeType: "image/jpeg"})
		Expect(err).To(MatchError(ErrUnreadableImage))
	})

	It("rejects empty images", func() {
		_, err := toPNG(&imagesource.AcquiredImage{MimeType: "image/png"})
		Expect(err).To(MatchError(ErrUnreadableImage))
	})

	It("recognises HEIC brands", func() {
		Expect(isHEIC([]byte("\x00\x00\x00\x18ftypheic0000"))).To(BeTrue())
		Expect(isHEIC([]byte("\x00\x00\x00\x18ftypisom0000"))).To(BeFalse())
		Expect(isHEIC([]byte("short"))).To(BeFalse())
	})
})

var _ = Describe("prompts", func() {
	It("asks for every required field", func() {
		prompt := analysisPrompt(Cosmetics)
		for _, field := range requiredFields {
			Expect(prompt).To(ContainSubstring(field))
		}
	})

	It("carries the report into the assistant prompt", func() {
		prompt := assistantPrompt(AssistantRequest{
			Query:    "Is this safe for kids?",
			Category: Food,
			Context:  &SafetyReport{SafetyScore: 42, HighRiskIngredients: []string{"Red 40"}},
		})
		Expect(prompt).To(ContainSubstring("42/100"))
		Expect(prompt).To(ContainSubstring("High"))
		Expect(prompt).To(ContainSubstring("Red 40"))
		Expect(prompt).To(ContainSubstring("Is this safe for kids?"))
	})
})
