package scanning

import (
	"context"
	"io"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/label-scan/internal/imagesource"
)

var _ = Describe("Service", func() {
	var (
		server  *ghttp.Server
		service *Service
		img     *imagesource.AcquiredImage
		report  *SafetyReport
		err     error
		ctx     context.Context
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		service, newErr = NewService(server.URL()+"/", 5*time.Second)
		Expect(newErr).NotTo(HaveOccurred())
		img = &imagesource.AcquiredImage{Name: "label.jpg", Data: []byte("fake image data"), MimeType: "image/jpeg"}
		ctx = context.Background()
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		report, err = service.Analyze(ctx, img, Food)
	})

	When("the service returns a valid report", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/analyze"),
				func(w http.ResponseWriter, r *http.Request) {
					defer GinkgoRecover()
					Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
					Expect(r.FormValue("category")).To(Equal("food"))

					f, header, formErr := r.FormFile("file")
					Expect(formErr).NotTo(HaveOccurred())
					defer f.Close()
					Expect(header.Filename).To(Equal("label.jpg"))
					Expect(header.Header.Get("Content-Type")).To(Equal("image/jpeg"))
					data, _ := io.ReadAll(f)
					Expect(string(data)).To(Equal("fake image data"))
				},
				ghttp.RespondWith(http.StatusOK, validReportJSON, http.Header{"Content-Type": []string{"application/json"}}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should return the parsed report", func() {
			Expect(report.SafetyScore).To(Equal(85))
			Expect(report.LowRiskIngredients).To(Equal([]string{"Vitamin C"}))
		})

		It("should make exactly one request", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the service returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, `{"error": "No ingredients detected"}`))
		})

		It("returns ErrNetworkFailure with the status", func() {
			Expect(err).To(MatchError(ErrNetworkFailure))
			Expect(err.Error()).To(ContainSubstring("500"))
			Expect(err.Error()).To(ContainSubstring("No ingredients detected"))
		})

		It("does not retry", func() {
			Expect(server.ReceivedRequests()).To(HaveLen(1))
		})
	})

	When("the success payload is missing fields", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusOK, `{"safety_score": 70}`))
		})

		It("returns ErrMalformedResponse", func() {
			Expect(err).To(MatchError(ErrMalformedResponse))
		})
	})

	When("the service is unreachable", func() {
		BeforeEach(func() {
			server.Close()
		})

		It("returns ErrNetworkFailure", func() {
			Expect(err).To(MatchError(ErrNetworkFailure))
		})
	})

	When("the context is cancelled", func() {
		BeforeEach(func() {
			cancelled, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cancelled
		})

		It("returns an error wrapping context.Canceled", func() {
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	When("the image is empty", func() {
		BeforeEach(func() {
			img = &imagesource.AcquiredImage{MimeType: "image/jpeg"}
		})

		It("fails without calling the service", func() {
			Expect(err).To(HaveOccurred())
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})

var _ = Describe("NewService", func() {
	It("requires a url", func() {
		_, err := NewService("  ", time.Second)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("ServiceAssistant", func() {
	var (
		server    *ghttp.Server
		assistant *ServiceAssistant
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var err error
		assistant, err = NewServiceAssistant(server.URL(), 5*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	It("posts the query with its report context", func() {
		report := &SafetyReport{SafetyScore: 85, OverallRisk: "Low", LowRiskIngredients: []string{"Vitamin C"}}
		server.AppendHandlers(ghttp.CombineHandlers(
			ghttp.VerifyRequest(http.MethodPost, "/chat"),
			ghttp.VerifyJSONRepresenting(AssistantRequest{Query: "Safe for kids?", Context: report, Category: Food}),
			ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"reply": "Yes, in moderation."}),
		))

		reply, err := assistant.Ask(context.Background(), AssistantRequest{Query: "Safe for kids?", Context: report, Category: Food})
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal("Yes, in moderation."))
	})

	It("surfaces an error reply as ErrNetworkFailure", func() {
		server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]string{"error": "quota exceeded"}))

		_, err := assistant.Ask(context.Background(), AssistantRequest{Query: "hi", Category: Food})
		Expect(err).To(MatchError(ErrNetworkFailure))
		Expect(err.Error()).To(ContainSubstring("quota exceeded"))
	})

	It("returns ErrMalformedResponse on a non-JSON reply", func() {
		server.AppendHandlers(ghttp.RespondWith(http.StatusOK, "not json"))

		_, err := assistant.Ask(context.Background(), AssistantRequest{Query: "hi", Category: Food})
		Expect(err).To(MatchError(ErrMalformedResponse))
	})
})
