package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/label-scan/internal/imagesource"
)

var _ = Describe("Ollama", func() {
	var (
		server   *ghttp.Server
		analyzer *Ollama
		img      *imagesource.AcquiredImage
		pngData  []byte
		report   *SafetyReport
		err      error
	)

	chatReply := func(content string) ollamaChatResponse {
		return ollamaChatResponse{Message: ollamaMessage{Role: "assistant", Content: content}, Done: true}
	}

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		analyzer, newErr = NewOllama(server.URL()+"/", "llava:13b")
		Expect(newErr).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4)))).To(Succeed())
		pngData = buf.Bytes()
		img = &imagesource.AcquiredImage{Name: "label.png", Data: pngData, MimeType: "image/png"}
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		report, err = analyzer.Analyze(context.Background(), img, Food)
	})

	When("the model answers with a report", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					defer GinkgoRecover()
					var body ollamaChatRequest
					Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
					Expect(body.Model).To(Equal("llava:13b"))
					Expect(body.Format).To(Equal("json"))
					Expect(body.Stream).To(BeFalse())
					Expect(body.Messages).To(HaveLen(2))

					user := body.Messages[1]
					Expect(user.Role).To(Equal("user"))
					Expect(user.Content).To(Equal(analysisPrompt(Food)))
					Expect(user.Images).To(ConsistOf(base64.StdEncoding.EncodeToString(pngData)))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply(validReportJSON)),
			))
		})

		It("returns the parsed report", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report.SafetyScore).To(Equal(85))
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the model wraps the report in a code fence", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply("```json\n"+validReportJSON+"\n```")))
		})

		It("still returns the report", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(report).NotTo(BeNil())
		})
	})

	When("the server returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns a network failure", func() {
			Expect(err).To(MatchError(ErrNetworkFailure))
			Expect(err.Error()).To(ContainSubstring("500"))
			Expect(report).To(BeNil())
		})
	})

	When("the server is unreachable", func() {
		BeforeEach(func() {
			server.Close()
		})

		It("returns a network failure", func() {
			Expect(err).To(MatchError(ErrNetworkFailure))
		})
	})

	When("the response body is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "<html>proxy error</html>"))
		})

		It("returns a malformed response error", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
			Expect(err).NotTo(MatchError(ErrNetworkFailure))
		})
	})

	When("the message content is not a report", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, chatReply(`{"safety_score": 40}`)))
		})

		It("returns a malformed response error", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
		})
	})

	When("the image cannot be decoded", func() {
		BeforeEach(func() {
			img = &imagesource.AcquiredImage{Name: "label.jpg", Data: []byte("garbage"), MimeType: "image/jpeg"}
		})

		It("fails before calling the model", func() {
			Expect(err).To(MatchError(ErrUnreadableImage))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})
