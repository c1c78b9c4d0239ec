package imagesource

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pickers", func() {
	Describe("FilePicker", func() {
		var tmpDir string

		BeforeEach(func() {
			tmpDir = GinkgoT().TempDir()
		})

		It("reads the file and detects its mime type", func() {
			path := filepath.Join(tmpDir, "label.png")
			Expect(os.WriteFile(path, []byte("\x89PNG\r\n\x1a\nrest"), 0644)).To(Succeed())

			img, err := FilePicker{Path: path}.Pick(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(img.Name).To(Equal("label.png"))
			Expect(img.MimeType).To(Equal("image/png"))
			Expect(img.Validate()).To(Succeed())
		})

		It("treats an empty path as cancelled", func() {
			_, err := FilePicker{}.Pick(context.Background())
			Expect(err).To(MatchError(ErrCancelled))
		})

		It("returns an error for a missing file", func() {
			_, err := FilePicker{Path: filepath.Join(tmpDir, "missing.jpg")}.Pick(context.Background())
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(ErrCancelled))
		})
	})

	Describe("UploadPicker", func() {
		It("treats an empty upload as cancelled", func() {
			_, err := UploadPicker{Filename: "x.jpg"}.Pick(context.Background())
			Expect(err).To(MatchError(ErrCancelled))
		})

		It("copies the uploaded bytes", func() {
			data := []byte("fake image data")
			img, err := UploadPicker{Filename: "label.jpg", Data: data}.Pick(context.Background())
			Expect(err).NotTo(HaveOccurred())
			data[0] = 'X'
			Expect(string(img.Data)).To(Equal("fake image data"))
			Expect(img.MimeType).To(Equal("image/jpeg"))
		})
	})

	Describe("DetectMimeType", func() {
		It("prefers the declared type", func() {
			Expect(DetectMimeType("a.jpg", " Image/HEIC ", nil)).To(Equal("image/heic"))
		})

		It("falls back to the extension", func() {
			Expect(DetectMimeType("a.HEIF", "application/octet-stream", nil)).To(Equal("image/heif"))
		})

		It("sniffs the content as a last resort", func() {
			Expect(DetectMimeType("blob", "", []byte("\xff\xd8\xff\xe0"))).To(Equal("image/jpeg"))
		})
	})
})
